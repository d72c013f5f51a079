package interfaces

import (
	"context"

	"course-forum-backend/internal/model"
)

// UserRepository reads the accounts mirrored from the auth provider.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// CourseRepository reads courses and enrollments for access checks.
type CourseRepository interface {
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	IsEnrolled(ctx context.Context, courseID, userID string) (bool, error)
}

package memory

import (
	"context"

	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) interfaces.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if u, ok := r.db.users[id]; ok {
		user := *u
		return &user, nil
	}
	return nil, nil
}

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) interfaces.CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetCourse(_ context.Context, id string) (*model.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if c, ok := r.db.courses[id]; ok {
		course := *c
		return &course, nil
	}
	return nil, nil
}

func (r *courseRepository) IsEnrolled(_ context.Context, courseID, userID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.enrollments[courseID][userID], nil
}

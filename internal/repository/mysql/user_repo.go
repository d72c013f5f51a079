package mysql

import (
	"context"
	"database/sql"
	"errors"

	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/util"

	"go.uber.org/zap"
)

// userRepository reads the users mirrored from the auth provider.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a userRepository.
func NewUserRepository(db *sql.DB) interfaces.UserRepository {
	return &userRepository{db}
}

// FindByID looks a user up by id. A missing user is (nil, nil).
func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, username, email, avatar_url, role, created_at
              FROM users WHERE id = ?`
	var user model.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		util.Logger.Error("failed to find user", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	return &user, nil
}

type courseRepository struct {
	db *sql.DB
}

// NewCourseRepository creates a courseRepository.
func NewCourseRepository(db *sql.DB) interfaces.CourseRepository {
	return &courseRepository{db}
}

func (r *courseRepository) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.db.QueryRowContext(ctx, "SELECT id, title, owner_id FROM courses WHERE id = ?", id).
		Scan(&course.ID, &course.Title, &course.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		util.Logger.Error("failed to get course", zap.String("course_id", id), zap.Error(err))
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	var enrolled bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM enrollments WHERE course_id = ? AND user_id = ?)", courseID, userID).
		Scan(&enrolled)
	if err != nil {
		util.Logger.Error("failed to check enrollment",
			zap.String("course_id", courseID), zap.String("user_id", userID), zap.Error(err))
		return false, err
	}
	return enrolled, nil
}

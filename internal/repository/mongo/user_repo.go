package mongo

import (
	"context"
	"errors"

	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type userRepository struct {
	users *mongo.Collection
}

func NewUserRepository(db *mongo.Database) interfaces.UserRepository {
	return &userRepository{users: db.Collection(usersCollection)}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		util.Logger.Error("failed to find user", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	return &user, nil
}

type courseRepository struct {
	courses     *mongo.Collection
	enrollments *mongo.Collection
}

func NewCourseRepository(db *mongo.Database) interfaces.CourseRepository {
	return &courseRepository{
		courses:     db.Collection(coursesCollection),
		enrollments: db.Collection(enrollmentsCollection),
	}
}

func (r *courseRepository) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if err := r.courses.FindOne(ctx, bson.M{"_id": id}).Decode(&course); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		util.Logger.Error("failed to get course", zap.String("course_id", id), zap.Error(err))
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	n, err := r.enrollments.CountDocuments(ctx, bson.M{"course_id": courseID, "user_id": userID})
	if err != nil {
		util.Logger.Error("failed to check enrollment",
			zap.String("course_id", courseID), zap.String("user_id", userID), zap.Error(err))
		return false, err
	}
	return n > 0, nil
}

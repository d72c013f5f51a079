package service

import (
	"context"

	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
)

// UserService resolves token subjects to forum users.
type UserService struct {
	userRepo interfaces.UserRepository
}

func NewUserService(userRepo interfaces.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUserByID returns the user with id or ErrUserNotFound.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load user", err)
	}
	if user == nil {
		return nil, errors.New(errors.ErrUserNotFound, "user not found")
	}
	return user, nil
}

// ResolveActor turns a verified user id into the Actor of a request. A valid
// token for a user the forum does not know is rejected as unauthenticated.
func (s *UserService) ResolveActor(ctx context.Context, userID string) (*model.Actor, error) {
	if userID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "authentication required")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load user", err)
	}
	if user == nil {
		return nil, errors.New(errors.ErrUnauthorized, "unknown user")
	}
	return model.ActorFromUser(user), nil
}

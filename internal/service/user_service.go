package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/brandpost/internal/models"
	"github.com/maheshrc27/brandpost/internal/repository"
)

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*models.User, error)
	RemoveUser(ctx context.Context, userID int64) error
}

type userService struct {
	u repository.UserRepository
	p repository.PostRepository
}

func NewUserService(u repository.UserRepository, p repository.PostRepository) UserService {
	return &userService{
		u: u,
		p: p,
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	user, isExist, err := s.u.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Error getting user info")
	}

	if !isExist {
		err = errors.New("User not found")
		slog.Info(err.Error())
		return nil, fmt.Errorf("User doesn't exist")
	}

	return user, nil
}

// RemoveUser tombstones the user's posts, keeping them for audit, then
// removes the user.
func (s *userService) RemoveUser(ctx context.Context, userID int64) error {
	count, err := s.p.SoftDeleteByOwner(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.u.Remove(ctx, nil, userID); err != nil {
		return err
	}

	slog.Info("user removed", "user_id", userID, "posts_tombstoned", count)
	return nil
}

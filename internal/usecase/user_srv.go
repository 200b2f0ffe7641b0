package usecase

import (
	"context"
	"fmt"

	"account-service/internal/data/repository"
	"account-service/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
	log      *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, log *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

func (us *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	user, err := us.userRepo.FindByID(ctx, userID)
	if err != nil {
		us.log.Error("Failed to find user", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if user == nil {
		return nil, ErrNoAccount
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}

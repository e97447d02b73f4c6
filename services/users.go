package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/n0rdy/guardian/common"
	"github.com/n0rdy/guardian/db"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type newUserInput struct {
	Username string `validate:"required,max=255,printascii"`
	Email    string `validate:"required,email,max=320"`
}

type UsersService struct {
	repo     *db.GuardianRepo
	validate *validator.Validate
}

func NewUsersService(repo *db.GuardianRepo) *UsersService {
	return &UsersService{
		repo:     repo,
		validate: validator.New(),
	}
}

// CreateUser registers a user whose consumers will make the queues they read from attributed to them.
// The username must match the RabbitMQ user the consumers connect with.
func (us *UsersService) CreateUser(newUser common.NewUserRequest, ctx context.Context) (*common.UserResponse, error) {
	input := newUserInput{
		Username: strings.TrimSpace(newUser.Username),
		Email:    strings.TrimSpace(newUser.Email),
	}

	if err := us.validate.Struct(input); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 && validationErrs[0].Field() == "Email" {
			log.Error().Str("email", input.Email).Msg("invalid user email")
			return nil, common.ErrBadRequestInvalidEmail
		}
		log.Error().Str("username", input.Username).Msg("invalid username")
		return nil, common.ErrBadRequestInvalidUsername
	}

	nowMs := time.Now().UnixMilli()
	err := us.repo.InsertUser(&db.NewUser{
		Username:  input.Username,
		Email:     input.Email,
		CreatedAt: nowMs,
	}, ctx)
	if err != nil {
		return nil, err
	}

	return &common.UserResponse{
		Username:  input.Username,
		Email:     input.Email,
		CreatedAt: nowMs,
	}, nil
}

func (us *UsersService) GetUsers(ctx context.Context) ([]common.UserResponse, error) {
	users, err := us.repo.SelectAllUsers(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]common.UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, common.UserResponse{
			Username:  u.Username,
			Email:     u.Email,
			CreatedAt: u.CreatedAt,
		})
	}
	return resp, nil
}

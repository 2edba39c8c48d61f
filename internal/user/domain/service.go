package domain

import (
	"context"
	"errors"
)

//go:generate mockgen -source=service.go -destination=mocks/service_mock.go -package=mocks

type CreateUserRequest struct {
	Name     string
	Email    string
	Role     Role
	Password string
}

type UpdateUserRequest struct {
	ID   string
	Name *string
	Role *Role
}

type GetUserRequest struct {
	ID string
}

type ListUserRequest struct {
	ActiveOnly bool
	Role       Role
}

type ListUserFilter struct {
	ActiveOnly bool
	Role       Role
}

type ListUserResponse struct {
	Users []User `json:"users"`
}

type Service interface {
	Create(context.Context, CreateUserRequest) (User, error)
	Update(context.Context, UpdateUserRequest) (User, error)
	GetByID(context.Context, GetUserRequest) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(context.Context, ListUserRequest) (ListUserResponse, error)
	Deactivate(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidID    = errors.New("invalid_id")
	ErrEmailTaken   = errors.New("email_taken")
	ErrUserNotFound = errors.New("user_not_found")
	ErrUserInactive = errors.New("user_inactive")
)

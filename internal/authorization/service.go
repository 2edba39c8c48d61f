package authorization

import (
	"context"
	"errors"
)

//go:generate mockgen -source=service.go -destination=mocks/service.go -package=mocks

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

// Service answers "may this actor do this to that". Deny is the default:
// unknown roles, objects or actions all come back ErrForbidden.
type Service interface {
	Authorize(ctx context.Context, actor string, role string, object string, action string) error
}

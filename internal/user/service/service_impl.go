package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/user/domain"
	"github.com/numericalz/practicehub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.User{}, domain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}

	if !domain.ValidRole(req.Role) {
		return domain.User{}, domain.ErrInvalidRole
	}

	now := s.clock.Now()
	user := domain.User{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Role:      req.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, err
	}

	return user, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateUserRequest) (domain.User, error) {
	user, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.User{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.User{}, domain.ErrInvalidName
		}
		user.Name = name
	}
	if req.Role != nil {
		if !domain.ValidRole(*req.Role) {
			return domain.User{}, domain.ErrInvalidRole
		}
		user.Role = *req.Role
	}

	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, user); err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetUserRequest) (domain.User, error) {
	user, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, domain.ErrInvalidEmail
	}
	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	return *user, nil
}

func (s *Service) List(ctx context.Context, req domain.ListUserRequest) (domain.ListUserResponse, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListUserFilter{
		ActiveOnly: req.ActiveOnly,
		Role:       req.Role,
	})
	if err != nil {
		return domain.ListUserResponse{}, err
	}

	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return domain.ListUserResponse{Users: users}, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}
	user.IsActive = false
	user.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, user)
}

func (s *Service) Reactivate(ctx context.Context, id string) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if user.IsActive {
		return nil
	}
	user.IsActive = true
	user.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, user)
}

func (s *Service) find(ctx context.Context, raw string) (*domain.User, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lerpz/lerpz-auth/internal/database"
	"github.com/lerpz/lerpz-auth/pkg/kafka"
	"github.com/lerpz/lerpz-auth/pkg/pwd"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords
// so login responses cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type IUserService interface {
	Register(ctx context.Context, req RegisterRequest) (User, error)
	Authenticate(ctx context.Context, username, password string) (User, error)
}

type UserService struct {
	repo   IUserRepository
	hasher *pwd.Hasher
	audit  kafka.Publisher
}

func NewUserService(repo IUserRepository, hasher *pwd.Hasher, audit kafka.Publisher) IUserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		audit:  audit,
	}
}

func (s *UserService) Register(ctx context.Context, req RegisterRequest) (User, error) {
	salt := pwd.GenerateSaltHex()
	hash, err := s.hasher.Hash(ctx, req.Password, salt)
	if err != nil {
		return User{}, err
	}

	now := time.Now()
	u := User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		PasswordSalt: salt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, err
	}

	s.audit.Publish(ctx, kafka.Event{
		Type:   kafka.EventUserRegistered,
		UserID: u.ID,
	})

	return u, nil
}

func (s *UserService) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	ok, err := s.hasher.Validate(ctx, u.PasswordHash, password, u.PasswordSalt)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, ErrInvalidCredentials
	}

	s.audit.Publish(ctx, kafka.Event{
		Type:   kafka.EventUserLogin,
		UserID: u.ID,
	})

	return u, nil
}

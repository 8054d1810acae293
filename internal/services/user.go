package services

import (
	"context"

	"github.com/pulsecrm/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetActive(ctx context.Context, id int, active bool) error
}

// CacheInvalidator is the slice of the user cache the service needs.
// Every mutation of a user record must invalidate its cached snapshot;
// this is the coherence contract the cache's TTL only backstops.
type CacheInvalidator interface {
	Invalidate(id int)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(int) {}

// UserService encapsulates user use-cases.
type UserService struct {
	repo  UserRepository
	cache CacheInvalidator
}

func NewUserService(repo UserRepository, cache CacheInvalidator) *UserService {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &UserService{repo: repo, cache: cache}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	s.cache.Invalidate(updated.ID)
	return updated, nil
}

// Deactivate disables the account and drops any cached snapshot so the
// gate sees the deactivation on the very next request.
func (s *UserService) Deactivate(ctx context.Context, id int) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	return nil
}

// Activate re-enables the account.
func (s *UserService) Activate(ctx context.Context, id int) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	return nil
}

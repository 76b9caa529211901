package services

import (
	"context"
	"errors"

	"github.com/nxtgm/feedserver/internal/store"
	"github.com/nxtgm/feedserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords so a caller cannot tell which one was at fault.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Account, error)
	GetByUsername(ctx context.Context, username string) (types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
}

// AccountService encapsulates registration, login, and account lookup.
type AccountService struct {
	repo AccountRepository
}

func NewAccountService(repo AccountRepository) *AccountService {
	return &AccountService{repo: repo}
}

// Register creates an account with a bcrypt-hashed password. The unique
// index on username is the source of truth for uniqueness; the pre-check
// only avoids a doomed write for the common case.
func (s *AccountService) Register(ctx context.Context, username, password string) (types.Account, error) {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.Account{}, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Account{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.Account{}, err
	}

	return s.repo.Create(ctx, types.Account{
		Username:     username,
		PasswordHash: string(hashed),
	})
}

// Login verifies credentials and returns the matching account.
func (s *AccountService) Login(ctx context.Context, username, password string) (types.Account, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, ErrInvalidCredentials
		}
		return types.Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return types.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// GetByUsername returns the account for a username. Absence propagates as
// store.ErrNotFound, which callers may treat as a null result rather than
// an error.
func (s *AccountService) GetByUsername(ctx context.Context, username string) (types.Account, error) {
	return s.repo.GetByUsername(ctx, username)
}

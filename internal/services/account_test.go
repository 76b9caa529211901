package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nxtgm/feedserver/internal/store"
	"github.com/nxtgm/feedserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]types.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[primitive.ObjectID]types.Account)}
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id primitive.ObjectID) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (r *fakeAccountRepo) GetByUsername(_ context.Context, username string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *fakeAccountRepo) Create(_ context.Context, account types.Account) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Username == account.Username {
			return types.Account{}, store.ErrConflict
		}
	}
	account.ID = primitive.NewObjectID()
	r.accounts[account.ID] = account
	return account, nil
}

func (r *fakeAccountRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := NewAccountService(repo)

	account, err := svc.Register(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.PasswordHash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := NewAccountService(repo)

	if _, err := svc.Register(context.Background(), "alice", "one"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), "alice", "two")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := repo.count(); got != 1 {
		t.Fatalf("account count changed: %d", got)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := NewAccountService(repo)

	if _, err := svc.Register(context.Background(), "alice", "right"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongPassword := svc.Login(context.Background(), "alice", "wrong")
	_, unknownUser := svc.Login(context.Background(), "nobody", "whatever")

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", unknownUser)
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := NewAccountService(repo)

	registered, err := svc.Register(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	account, err := svc.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if account.ID != registered.ID {
		t.Fatalf("login returned wrong account: %s != %s", account.ID.Hex(), registered.ID.Hex())
	}
	if account.Username != "alice" {
		t.Fatalf("unexpected username %q", account.Username)
	}
}

func TestGetByUsernameAbsent(t *testing.T) {
	svc := NewAccountService(newFakeAccountRepo())

	_, err := svc.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

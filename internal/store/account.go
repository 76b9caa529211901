package store

import (
	"context"
	"errors"
	"time"

	"github.com/nxtgm/feedserver/internal/db"
	"github.com/nxtgm/feedserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *db.Mongo
}

func NewAccountRepository(database *db.Mongo) *AccountRepository {
	return &AccountRepository{db: database}
}

func (r *AccountRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.Account, error) {
	accounts, _, err := r.db.Collections(ctx)
	if err != nil {
		return types.Account{}, err
	}

	var account types.Account
	err = accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (types.Account, error) {
	accounts, _, err := r.db.Collections(ctx)
	if err != nil {
		return types.Account{}, err
	}

	var account types.Account
	err = accounts.FindOne(ctx, bson.M{"username": username}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	accounts, _, err := r.db.Collections(ctx)
	if err != nil {
		return types.Account{}, err
	}

	account.ID = primitive.NilObjectID
	account.CreatedAt = time.Now()

	result, err := accounts.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Account{}, ErrConflict
		}
		return types.Account{}, err
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		account.ID = id
	}
	return account, nil
}

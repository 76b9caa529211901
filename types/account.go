package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account represents a registered user in the accounts collection.
type Account struct {
	// ID is the store-generated identifier of the account.
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" bson:"username"`

	// PasswordHash stores the bcrypt hash of the account password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" bson:"password"`

	// CreatedAt is the timestamp when the account was registered.
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
}

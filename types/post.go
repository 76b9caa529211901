package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a feed entry in the feed collection.
type Post struct {
	// ID is the store-generated identifier of the post.
	ID primitive.ObjectID `json:"_id" bson:"_id,omitempty"`

	// Author references the account that uploaded the post. It is
	// serialized only through the enriched author view, never raw.
	Author primitive.ObjectID `json:"-" bson:"author"`

	// Title is the post headline.
	Title string `json:"title" bson:"title"`

	// Desc is the post body text.
	Desc string `json:"desc" bson:"desc"`

	// ImageURI optionally points at a hosted image.
	ImageURI string `json:"image_uri,omitempty" bson:"image_uri,omitempty"`

	// Location optionally names where the post was made.
	Location string `json:"location,omitempty" bson:"location,omitempty"`

	// CreatedAt is caller-supplied or defaulted at upload time.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`

	// Likes holds the ids of accounts that liked the post, no duplicates.
	Likes []primitive.ObjectID `json:"likes" bson:"likes"`

	// Comments is the append-only comment list in insertion order.
	Comments []Comment `json:"comments" bson:"comments"`
}

// Comment is embedded in a Post. Username is a denormalized copy of the
// commenting account's name at comment time.
type Comment struct {
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Username  string             `json:"username" bson:"username"`
	Comment   string             `json:"comment" bson:"comment"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// AuthorInfo is the resolved author summary attached to posts at read time.
type AuthorInfo struct {
	Username string `json:"username"`
}

// EnrichedPost is a Post with its author resolved. Author is null when the
// author id is malformed or the account no longer exists.
type EnrichedPost struct {
	Post
	Author *AuthorInfo `json:"author"`
}

package store

import (
	"context"
	"errors"

	"github.com/nxtgm/feedserver/internal/db"
	"github.com/nxtgm/feedserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// PostRepository handles persistence for feed posts.
type PostRepository struct {
	db *db.Mongo
}

func NewPostRepository(database *db.Mongo) *PostRepository {
	return &PostRepository{db: database}
}

func (r *PostRepository) Insert(ctx context.Context, post types.Post) (types.Post, error) {
	_, feed, err := r.db.Collections(ctx)
	if err != nil {
		return types.Post{}, err
	}

	post.ID = primitive.NilObjectID
	result, err := feed.InsertOne(ctx, post)
	if err != nil {
		return types.Post{}, err
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		post.ID = id
	}
	return post, nil
}

func (r *PostRepository) All(ctx context.Context) ([]types.Post, error) {
	_, feed, err := r.db.Collections(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := feed.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []types.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) ByAuthor(ctx context.Context, author primitive.ObjectID) ([]types.Post, error) {
	_, feed, err := r.db.Collections(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := feed.Find(ctx, bson.M{"author": author})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []types.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) ByID(ctx context.Context, id primitive.ObjectID) (types.Post, error) {
	_, feed, err := r.db.Collections(ctx)
	if err != nil {
		return types.Post{}, err
	}

	var post types.Post
	err = feed.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, feed, err := r.db.Collections(ctx)
	if err != nil {
		return err
	}

	result, err := feed.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleLike flips userID's membership in the post's likes set and reports
// whether the post is now liked by that user. Both legs are conditional
// single-document updates evaluated by the server, so concurrent toggles
// from different callers each flip state exactly once.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error) {
	_, feed, err := r.db.Collections(ctx)
	if err != nil {
		return false, err
	}

	// Remove-if-present.
	result, err := feed.UpdateOne(ctx,
		bson.M{"_id": postID, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}},
	)
	if err != nil {
		return false, err
	}
	if result.MatchedCount > 0 {
		return false, nil
	}

	// Add-if-absent.
	result, err = feed.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$addToSet": bson.M{"likes": userID}},
	)
	if err != nil {
		return false, err
	}
	if result.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return true, nil
}

// AppendComment pushes a comment onto the post's comment list. A push
// against a missing post matches nothing, which reports ErrNotFound rather
// than silently claiming the comment was stored.
func (r *PostRepository) AppendComment(ctx context.Context, postID primitive.ObjectID, comment types.Comment) error {
	_, feed, err := r.db.Collections(ctx)
	if err != nil {
		return err
	}

	result, err := feed.UpdateOne(ctx,
		bson.M{"_id": postID},
		bson.M{"$push": bson.M{"comments": comment}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

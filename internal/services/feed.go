package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nxtgm/feedserver/internal/events"
	"github.com/nxtgm/feedserver/internal/store"
	"github.com/nxtgm/feedserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Toggle outcomes reported by ToggleLike.
const (
	Liked   = "Liked"
	Unliked = "Unliked"
)

// ErrUnknownAccount is returned when a comment references an account that
// does not exist. Distinct from store.ErrNotFound so callers can tell a
// missing commenter from a missing post.
var ErrUnknownAccount = errors.New("unknown account")

// PostRepository defines persistence operations for feed posts.
type PostRepository interface {
	Insert(ctx context.Context, post types.Post) (types.Post, error)
	All(ctx context.Context) ([]types.Post, error)
	ByAuthor(ctx context.Context, author primitive.ObjectID) ([]types.Post, error)
	ByID(ctx context.Context, id primitive.ObjectID) (types.Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (bool, error)
	AppendComment(ctx context.Context, postID primitive.ObjectID, comment types.Comment) error
}

// AccountGetter resolves account ids for author enrichment and comment
// attribution.
type AccountGetter interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Account, error)
}

// UploadInput carries the fields of a new post.
type UploadInput struct {
	Author    primitive.ObjectID
	Title     string
	Desc      string
	ImageURI  string
	Location  string
	CreatedAt time.Time
}

// FeedService encapsulates post use-cases and author enrichment.
type FeedService struct {
	posts    PostRepository
	accounts AccountGetter
	events   events.Publisher
}

func NewFeedService(posts PostRepository, accounts AccountGetter, publisher events.Publisher) *FeedService {
	return &FeedService{
		posts:    posts,
		accounts: accounts,
		events:   publisher,
	}
}

// Upload creates a post with empty likes and comments. CreatedAt defaults
// to now when the caller supplied none.
func (s *FeedService) Upload(ctx context.Context, in UploadInput) (types.Post, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	post, err := s.posts.Insert(ctx, types.Post{
		Author:    in.Author,
		Title:     in.Title,
		Desc:      in.Desc,
		ImageURI:  in.ImageURI,
		Location:  in.Location,
		CreatedAt: createdAt,
		Likes:     []primitive.ObjectID{},
		Comments:  []types.Comment{},
	})
	if err != nil {
		return types.Post{}, err
	}

	s.publish(ctx, events.Event{
		Type:   events.TypePostCreated,
		PostID: post.ID.Hex(),
		UserID: post.Author.Hex(),
	})
	return post, nil
}

// List returns every post with its author resolved. Enrichment lookups run
// in parallel; the result keeps the store's ordering, and a lookup failure
// for one post only nulls that post's author.
func (s *FeedService) List(ctx context.Context) ([]types.EnrichedPost, error) {
	posts, err := s.posts.All(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, posts), nil
}

// ByAuthor returns the author's posts. The author is resolved once and
// shared across the result; no matches is an empty slice, not an error.
func (s *FeedService) ByAuthor(ctx context.Context, author primitive.ObjectID) ([]types.EnrichedPost, error) {
	posts, err := s.posts.ByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}

	info := s.resolveAuthor(ctx, author)
	enriched := make([]types.EnrichedPost, len(posts))
	for i, post := range posts {
		enriched[i] = types.EnrichedPost{Post: post, Author: info}
	}
	return enriched, nil
}

// ByID returns one enriched post or store.ErrNotFound.
func (s *FeedService) ByID(ctx context.Context, id primitive.ObjectID) (types.EnrichedPost, error) {
	post, err := s.posts.ByID(ctx, id)
	if err != nil {
		return types.EnrichedPost{}, err
	}
	return types.EnrichedPost{Post: post, Author: s.resolveAuthor(ctx, post.Author)}, nil
}

// Delete removes a post; store.ErrNotFound when nothing matched.
func (s *FeedService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, events.Event{
		Type:   events.TypePostDeleted,
		PostID: id.Hex(),
	})
	return nil
}

// ToggleLike flips the user's like on the post and reports "Liked" or
// "Unliked".
func (s *FeedService) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (string, error) {
	liked, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		return "", err
	}
	if !liked {
		return Unliked, nil
	}

	s.publish(ctx, events.Event{
		Type:   events.TypePostLiked,
		PostID: postID.Hex(),
		UserID: userID.Hex(),
	})
	return Liked, nil
}

// AddComment appends a comment attributed to an existing account. The
// account is resolved first so comments always carry a real username; a
// missing account reports ErrUnknownAccount and a missing post reports
// store.ErrNotFound.
func (s *FeedService) AddComment(ctx context.Context, postID, userID primitive.ObjectID, text string) (types.Comment, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Comment{}, ErrUnknownAccount
		}
		return types.Comment{}, err
	}

	comment := types.Comment{
		UserID:    userID,
		Username:  account.Username,
		Comment:   text,
		CreatedAt: time.Now(),
	}
	if err := s.posts.AppendComment(ctx, postID, comment); err != nil {
		return types.Comment{}, err
	}

	s.publish(ctx, events.Event{
		Type:   events.TypeCommentAdded,
		PostID: postID.Hex(),
		UserID: userID.Hex(),
	})
	return comment, nil
}

func (s *FeedService) enrichAll(ctx context.Context, posts []types.Post) []types.EnrichedPost {
	enriched := make([]types.EnrichedPost, len(posts))

	var wg sync.WaitGroup
	for i, post := range posts {
		wg.Add(1)
		go func(i int, post types.Post) {
			defer wg.Done()
			enriched[i] = types.EnrichedPost{Post: post, Author: s.resolveAuthor(ctx, post.Author)}
		}(i, post)
	}
	wg.Wait()

	return enriched
}

// resolveAuthor returns nil on any failure: a post with an unresolvable
// author still appears in results, just without author info.
func (s *FeedService) resolveAuthor(ctx context.Context, author primitive.ObjectID) *types.AuthorInfo {
	if author.IsZero() {
		return nil
	}
	account, err := s.accounts.GetByID(ctx, author)
	if err != nil {
		return nil
	}
	return &types.AuthorInfo{Username: account.Username}
}

// publish is best-effort: broker trouble is logged and never fails the
// operation that triggered the event.
func (s *FeedService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("events: publish %s failed: %v", event.Type, err)
	}
}

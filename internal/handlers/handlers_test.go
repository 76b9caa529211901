package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nxtgm/feedserver/internal/events"
	"github.com/nxtgm/feedserver/internal/services"
	"github.com/nxtgm/feedserver/internal/store"
	"github.com/nxtgm/feedserver/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]types.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[primitive.ObjectID]types.Account)}
}

func (r *memAccountRepo) GetByID(_ context.Context, id primitive.ObjectID) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (r *memAccountRepo) GetByUsername(_ context.Context, username string) (types.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *memAccountRepo) Create(_ context.Context, account types.Account) (types.Account, error) {
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

type memPostRepo struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]types.Post
	order []primitive.ObjectID
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[primitive.ObjectID]types.Post)}
}

func (r *memPostRepo) Insert(_ context.Context, post types.Post) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = primitive.NewObjectID()
	r.posts[post.ID] = post
	r.order = append(r.order, post.ID)
	return post, nil
}

func (r *memPostRepo) All(_ context.Context) ([]types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	posts := make([]types.Post, 0, len(r.order))
	for _, id := range r.order {
		posts = append(posts, r.posts[id])
	}
	return posts, nil
}

func (r *memPostRepo) ByAuthor(_ context.Context, author primitive.ObjectID) ([]types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	posts := []types.Post{}
	for _, id := range r.order {
		if r.posts[id].Author == author {
			posts = append(posts, r.posts[id])
		}
	}
	return posts, nil
}

func (r *memPostRepo) ByID(_ context.Context, id primitive.ObjectID) (types.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (r *memPostRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.posts, id)
	for i, ordered := range r.order {
		if ordered == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memPostRepo) ToggleLike(_ context.Context, postID, userID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return false, store.ErrNotFound
	}
	for i, liker := range post.Likes {
		if liker == userID {
			post.Likes = append(post.Likes[:i], post.Likes[i+1:]...)
			r.posts[postID] = post
			return false, nil
		}
	}
	post.Likes = append(post.Likes, userID)
	r.posts[postID] = post
	return true, nil
}

func (r *memPostRepo) AppendComment(_ context.Context, postID primitive.ObjectID, comment types.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return store.ErrNotFound
	}
	post.Comments = append(post.Comments, comment)
	r.posts[postID] = post
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	accounts := newMemAccountRepo()
	posts := newMemPostRepo()
	accountService := services.NewAccountService(accounts)
	feedService := services.NewFeedService(posts, accounts, events.NopPublisher{})

	router := chi.NewRouter()
	router.Get("/", Liveness)
	router.Route("/api", func(r chi.Router) {
		AccountRouter(r, accountService)
		FeedRouter(r, feedService)
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func getJSON(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func registerAndLogin(t *testing.T, baseURL, username string) string {
	t.Helper()
	resp, body := postJSON(t, baseURL+"/api/register", map[string]string{
		"username": username,
		"password": "pass123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, resp.StatusCode, body)
	}

	resp, body = postJSON(t, baseURL+"/api/login", map[string]string{
		"username": username,
		"password": "pass123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, resp.StatusCode, body)
	}
	var login struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return login.UserID
}

func uploadPost(t *testing.T, baseURL, author string) string {
	t.Helper()
	resp, body := postJSON(t, baseURL+"/api/upload", map[string]string{
		"author": author,
		"title":  "hello",
		"desc":   "world",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d %s", resp.StatusCode, body)
	}

	resp, body = getJSON(t, baseURL+"/api/feed")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feed: %d %s", resp.StatusCode, body)
	}
	var feed []struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(feed) == 0 {
		t.Fatal("uploaded post missing from feed")
	}
	return feed[len(feed)-1].ID
}

func TestLiveness(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Server is running") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := postJSON(t, ts.URL+"/api/register", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/api/register", map[string]string{"username": "alice", "password": "x"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp, body := postJSON(t, ts.URL+"/api/register", map[string]string{"username": "alice", "password": "y"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate: expected 400, got %d", resp.StatusCode)
	}
	var msg MessageResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Message != "Username already exists" {
		t.Fatalf("unexpected message %q", msg.Message)
	}
}

func TestLoginFailureShapeIsUniform(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts.URL, "alice")

	respWrong, bodyWrong := postJSON(t, ts.URL+"/api/login", map[string]string{
		"username": "alice", "password": "nope",
	})
	respUnknown, bodyUnknown := postJSON(t, ts.URL+"/api/login", map[string]string{
		"username": "nobody", "password": "nope",
	})

	if respWrong.StatusCode != http.StatusUnauthorized || respUnknown.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", respWrong.StatusCode, respUnknown.StatusCode)
	}
	if !bytes.Equal(bodyWrong, bodyUnknown) {
		t.Fatalf("failure bodies differ: %s vs %s", bodyWrong, bodyUnknown)
	}
}

func TestAccountLookup(t *testing.T) {
	ts := newTestServer(t)
	registerAndLogin(t, ts.URL, "alice")

	resp, body := postJSON(t, ts.URL+"/api/accounts", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup: %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "password") {
		t.Fatalf("password leaked: %s", body)
	}
	if !strings.Contains(string(body), `"username":"alice"`) {
		t.Fatalf("unexpected body %s", body)
	}

	resp, body = postJSON(t, ts.URL+"/api/accounts", map[string]string{"username": "ghost"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("absent lookup: %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "null" {
		t.Fatalf("expected null body, got %s", body)
	}
}

func TestUploadValidation(t *testing.T) {
	ts := newTestServer(t)
	userID := registerAndLogin(t, ts.URL, "alice")

	resp, _ := postJSON(t, ts.URL+"/api/upload", map[string]string{"author": userID, "title": "no desc"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing desc: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, ts.URL+"/api/upload", map[string]string{"author": "not-an-id", "title": "t", "desc": "d"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad author id: expected 400, got %d", resp.StatusCode)
	}
}

func TestFeedLifecycle(t *testing.T) {
	ts := newTestServer(t)
	userID := registerAndLogin(t, ts.URL, "alice")
	postID := uploadPost(t, ts.URL, userID)

	// Enriched author on the single-post route.
	resp, body := getJSON(t, ts.URL+"/api/feed/"+postID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get post: %d %s", resp.StatusCode, body)
	}
	var post struct {
		Title  string `json:"title"`
		Author *struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	if err := json.Unmarshal(body, &post); err != nil {
		t.Fatalf("decode post: %v", err)
	}
	if post.Title != "hello" || post.Author == nil || post.Author.Username != "alice" {
		t.Fatalf("unexpected post %s", body)
	}

	// Posts by author.
	resp, body = getJSON(t, ts.URL+"/api/post/"+userID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("posts by author: %d", resp.StatusCode)
	}
	var byAuthor []json.RawMessage
	if err := json.Unmarshal(body, &byAuthor); err != nil || len(byAuthor) != 1 {
		t.Fatalf("expected 1 post by author, got %s", body)
	}

	// Like toggling.
	resp, body = postJSON(t, ts.URL+"/api/like/"+postID, map[string]string{"userId": userID})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Liked") {
		t.Fatalf("like: %d %s", resp.StatusCode, body)
	}
	resp, body = postJSON(t, ts.URL+"/api/like/"+postID, map[string]string{"userId": userID})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Unliked") {
		t.Fatalf("unlike: %d %s", resp.StatusCode, body)
	}
	resp, _ = postJSON(t, ts.URL+"/api/like/"+postID, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("like without userId: expected 400, got %d", resp.StatusCode)
	}

	// Commenting.
	resp, body = postJSON(t, ts.URL+"/api/comment/"+postID, map[string]string{
		"userId": userID, "comment": "nice",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment: %d %s", resp.StatusCode, body)
	}
	var commented struct {
		Comment struct {
			Username string `json:"username"`
			Comment  string `json:"comment"`
		} `json:"comment"`
	}
	if err := json.Unmarshal(body, &commented); err != nil {
		t.Fatalf("decode comment: %v", err)
	}
	if commented.Comment.Username != "alice" || commented.Comment.Comment != "nice" {
		t.Fatalf("unexpected comment %s", body)
	}

	resp, _ = postJSON(t, ts.URL+"/api/comment/"+postID, map[string]string{
		"userId": primitive.NewObjectID().Hex(), "comment": "ghost",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("comment by unknown user: expected 404, got %d", resp.StatusCode)
	}

	// Deletion is idempotent failure, not a crash.
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/delete/"+postID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}

	resp, _ = getJSON(t, ts.URL+"/api/feed/"+postID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted post: expected 404, got %d", resp.StatusCode)
	}
}

func TestMalformedIDsAreClientErrors(t *testing.T) {
	ts := newTestServer(t)

	for _, url := range []string{
		ts.URL + "/api/feed/not-an-id",
		ts.URL + "/api/post/not-an-id",
	} {
		resp, _ := getJSON(t, url)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", url, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/delete/not-an-id", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("delete malformed id: expected 400, got %d", resp.StatusCode)
	}
}

func TestErrorBodyShape(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, ts.URL+"/api/feed/"+primitive.NewObjectID().Hex())
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var msg map[string]any
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := msg["message"].(string); !ok || len(msg) != 1 {
		t.Fatalf("error body is not {message}: %s", body)
	}
}

func TestOrphanedAuthorYieldsNullInFeed(t *testing.T) {
	ts := newTestServer(t)

	// Author id is well-formed but resolves to no account.
	resp, _ := postJSON(t, ts.URL+"/api/upload", map[string]string{
		"author": primitive.NewObjectID().Hex(),
		"title":  "t",
		"desc":   "d",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: %d", resp.StatusCode)
	}

	respFeed, body := getJSON(t, ts.URL+"/api/feed")
	if respFeed.StatusCode != http.StatusOK {
		t.Fatalf("feed: %d", respFeed.StatusCode)
	}
	var feed []struct {
		Author *json.RawMessage `json:"author"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("orphaned post missing from feed: %s", body)
	}
	if feed[0].Author != nil && string(*feed[0].Author) != "null" {
		t.Fatalf("expected null author, got %s", *feed[0].Author)
	}
}

func TestConcurrentLikesFromDistinctUsers(t *testing.T) {
	ts := newTestServer(t)
	userID := registerAndLogin(t, ts.URL, "alice")
	postID := uploadPost(t, ts.URL, userID)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf(`{"userId":%q}`, primitive.NewObjectID().Hex())
			resp, err := http.Post(ts.URL+"/api/like/"+postID, "application/json", strings.NewReader(payload))
			if err != nil {
				t.Errorf("like %d: %v", i, err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("like %d: status %d", i, resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	resp, body := getJSON(t, ts.URL+"/api/feed/"+postID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get post: %d", resp.StatusCode)
	}
	var post struct {
		Likes []string `json:"likes"`
	}
	if err := json.Unmarshal(body, &post); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(post.Likes) != n {
		t.Fatalf("expected %d likes, got %d", n, len(post.Likes))
	}
	seen := make(map[string]bool, n)
	for _, liker := range post.Likes {
		if seen[liker] {
			t.Fatalf("duplicate like %s", liker)
		}
		seen[liker] = true
	}
}

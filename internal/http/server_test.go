package httpapp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/quill/internal/auth"
	"github.com/alphabot-ai/quill/internal/config"
	"github.com/alphabot-ai/quill/internal/logging"
	"github.com/alphabot-ai/quill/internal/model"
	"github.com/alphabot-ai/quill/internal/store/sqlite"
)

type testEnv struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour, RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20}
	authSvc, err := auth.NewService(st, cfg.JWTSecret, cfg.TokenTTL)
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(st, authSvc, logging.Discard(), cfg, BuildInfo{Version: "test"}))
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv}
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(method, path, token string, body any) (int, []byte) {
	e.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, data
}

func (e *testEnv) decode(data []byte, dest any) {
	e.t.Helper()
	require.NoError(e.t, json.Unmarshal(data, dest), string(data))
}

func (e *testEnv) errorMessage(data []byte) string {
	e.t.Helper()
	var body map[string]string
	e.decode(data, &body)
	return body["error"]
}

func (e *testEnv) register(name string) auth.Session {
	e.t.Helper()
	status, data := e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "pw-" + name,
	})
	require.Equal(e.t, http.StatusCreated, status, string(data))
	var sess auth.Session
	e.decode(data, &sess)
	return sess
}

func (e *testEnv) createPost(token, title, content string) model.Post {
	e.t.Helper()
	status, data := e.do(http.MethodPost, "/posts", token, map[string]string{"title": title, "content": content})
	require.Equal(e.t, http.StatusCreated, status, string(data))
	var p model.Post
	e.decode(data, &p)
	return p
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	assert.NotEmpty(t, alice.Token)
	assert.Equal(t, "alice@example.com", alice.User.Email)

	status, data := env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice2", "email": "ALICE@Example.com", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Registration failed", env.errorMessage(data))

	status, data = env.do(http.MethodPost, "/auth/register", "", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Registration failed", env.errorMessage(data))

	status, data = env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "Alice@example.com", "password": "pw-alice"})
	require.Equal(t, http.StatusOK, status, string(data))
	var sess auth.Session
	env.decode(data, &sess)
	assert.Equal(t, alice.User.ID, sess.User.ID)
	assert.NotEmpty(t, sess.Token)

	status, wrongPw := env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status2, unknown := env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status2)
	assert.Equal(t, string(wrongPw), string(unknown), "wrong password and unknown email must look the same")
	assert.Equal(t, "Invalid credentials", env.errorMessage(unknown))

	status, data = env.do(http.MethodPost, "/auth/login", "", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Login failed", env.errorMessage(data))
}

func TestResponsesNeverCarryPasswords(t *testing.T) {
	env := newTestEnv(t)
	_, data := env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "secretive", "email": "s@example.com", "password": "super-secret-pw",
	})
	_, login := env.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "s@example.com", "password": "super-secret-pw"})
	for _, body := range [][]byte{data, login} {
		assert.NotContains(t, string(body), "super-secret-pw")
		assert.NotContains(t, string(body), "$2a$")
		assert.NotContains(t, strings.ToLower(string(body)), "password")
	}
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	for name, token := range map[string]string{
		"missing":  "",
		"garbage":  "not-a-token",
		"tampered": alice.Token + "x",
	} {
		t.Run(name, func(t *testing.T) {
			status, data := env.do(http.MethodPost, "/posts", token, map[string]string{"title": "t", "content": "c"})
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "Please authenticate", env.errorMessage(data))
		})
	}

	status, _ := env.do(http.MethodGet, "/posts", "", nil)
	assert.Equal(t, http.StatusOK, status, "reads bypass the gate")
}

func TestPostOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	post := env.createPost(alice.Token, "Alice's post", "hello")
	assert.Equal(t, model.AuthorRef{ID: alice.User.ID, Username: "alice"}, post.Author)
	assert.Equal(t, []string{}, post.CommentIDs)

	status, data := env.do(http.MethodPatch, "/posts/"+post.ID, bob.Token, map[string]string{"title": "pwned"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Post not found", env.errorMessage(data))

	status, data = env.do(http.MethodDelete, "/posts/"+post.ID, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Post not found", env.errorMessage(data))

	status, data = env.do(http.MethodGet, "/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	var got model.PostDetail
	env.decode(data, &got)
	assert.Equal(t, "Alice's post", got.Title)
	assert.Equal(t, alice.User.ID, got.Author.ID)
}

func TestUpdatePostIgnoresProtectedFields(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	post := env.createPost(alice.Token, "Original", "body")

	status, data := env.do(http.MethodPatch, "/posts/"+post.ID, alice.Token, map[string]any{
		"title":    "Edited",
		"id":       "forged-id",
		"author":   map[string]string{"id": bob.User.ID},
		"comments": []string{"c1"},
	})
	require.Equal(t, http.StatusOK, status, string(data))
	var updated model.Post
	env.decode(data, &updated)
	assert.Equal(t, post.ID, updated.ID)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, "body", updated.Content)
	assert.Equal(t, alice.User.ID, updated.Author.ID)
	assert.Empty(t, updated.CommentIDs)

	status, data = env.do(http.MethodPatch, "/posts/"+post.ID, alice.Token, map[string]string{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Could not update post", env.errorMessage(data))

	status, data = env.do(http.MethodPatch, "/posts/"+post.ID, alice.Token, map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Could not update post", env.errorMessage(data))
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")

	status, data := env.do(http.MethodPost, "/posts", alice.Token, map[string]string{"title": "no content"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Could not create post", env.errorMessage(data))
}

func TestListPostsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	first := env.createPost(alice.Token, "First", "1")
	second := env.createPost(alice.Token, "Second", "2")

	status, data := env.do(http.MethodGet, "/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	var posts []model.Post
	env.decode(data, &posts)
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	if diff := cmp.Diff([]string{second.ID, first.ID}, ids); diff != "" {
		t.Fatalf("post order mismatch (-want +got):\n%s", diff)
	}
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	post := env.createPost(alice.Token, "Short lived", "bye")

	status, data := env.do(http.MethodDelete, "/posts/"+post.ID, alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Post deleted successfully"}`, string(data))

	status, data = env.do(http.MethodGet, "/posts/"+post.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Post not found", env.errorMessage(data))
}

func TestCommentFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	bob := env.register("bob")
	post := env.createPost(alice.Token, "Discuss", "thoughts?")

	status, data := env.do(http.MethodPost, "/posts/missing/comments", bob.Token, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Post not found", env.errorMessage(data))

	status, data = env.do(http.MethodPost, "/posts/"+post.ID+"/comments", bob.Token, map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Could not add comment", env.errorMessage(data))

	status, data = env.do(http.MethodPost, "/posts/"+post.ID+"/comments", bob.Token, map[string]string{"content": "great post"})
	require.Equal(t, http.StatusCreated, status, string(data))
	var comment model.Comment
	env.decode(data, &comment)
	assert.Equal(t, post.ID, comment.PostID)
	assert.Equal(t, "bob", comment.Author.Username)

	status, data = env.do(http.MethodGet, "/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	var detail model.PostDetail
	env.decode(data, &detail)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, comment.ID, detail.Comments[0].ID)
	assert.Equal(t, "great post", detail.Comments[0].Content)

	status, data = env.do(http.MethodPatch, "/posts/"+post.ID+"/comments/"+comment.ID, alice.Token, map[string]string{"content": "edited by alice"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Comment not found", env.errorMessage(data))

	// The post segment is not cross-checked; the comment id decides.
	status, data = env.do(http.MethodPatch, "/posts/elsewhere/comments/"+comment.ID, bob.Token, map[string]string{"content": "edited"})
	require.Equal(t, http.StatusOK, status, string(data))
	env.decode(data, &comment)
	assert.Equal(t, "edited", comment.Content)

	status, data = env.do(http.MethodDelete, "/posts/"+post.ID+"/comments/"+comment.ID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Comment not found", env.errorMessage(data))

	status, data = env.do(http.MethodDelete, "/posts/"+post.ID+"/comments/"+comment.ID, bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Comment deleted successfully"}`, string(data))

	status, data = env.do(http.MethodGet, "/posts/"+post.ID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(data))

	status, data = env.do(http.MethodGet, "/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	env.decode(data, &detail)
	assert.Empty(t, detail.Comments)
}

func TestListCommentsOfUnknownPost(t *testing.T) {
	env := newTestEnv(t)
	status, data := env.do(http.MethodGet, "/posts/nope/comments", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(data))
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice")
	both := env.createPost(alice.Token, "Gardening", "tomatoes and basil grow together")
	partial := env.createPost(alice.Token, "Kitchen", "fresh basil pesto")
	env.createPost(alice.Token, "Unrelated", "nothing to see")
	hidden := env.createPost(alice.Token, "Notes", "the word zucchini only appears in content")

	search := func(q string) []model.Post {
		t.Helper()
		status, data := env.do(http.MethodGet, "/posts/search?query="+q, "", nil)
		require.Equal(t, http.StatusOK, status, string(data))
		var posts []model.Post
		env.decode(data, &posts)
		return posts
	}

	got := search("zucchini")
	require.Len(t, got, 1)
	assert.Equal(t, hidden.ID, got[0].ID)

	got = search("tomatoes+basil")
	require.Len(t, got, 2)
	assert.Equal(t, both.ID, got[0].ID, "posts matching more terms rank first")
	assert.Equal(t, partial.ID, got[1].ID)

	assert.Empty(t, search(""))
}

func TestOperationalRoutes(t *testing.T) {
	env := newTestEnv(t)

	status, data := env.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	status, data = env.do(http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"version":"test"`)

	status, data = env.do(http.MethodGet, "/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, status)
	var doc map[string]any
	env.decode(data, &doc)
	assert.Equal(t, "2.0", doc["swagger"])
	assert.Contains(t, doc["paths"], "/posts/search")

	status, data = env.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not found", env.errorMessage(data))

	status, _ = env.do(http.MethodPut, "/posts", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

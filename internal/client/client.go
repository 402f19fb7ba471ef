// Package client provides a Go client for the Quill API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alphabot-ai/quill/internal/model"
)

// Client is a Quill API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	User       *model.User
}

// New creates a new Quill client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response. Message is the server's "error" field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quill: %d %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by an *APIError, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type session struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// IsAuthenticated returns true if the client holds a token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != ""
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, username, email, password, bio string) (*model.User, error) {
	req := map[string]string{"username": username, "email": email, "password": password}
	if bio != "" {
		req["bio"] = bio
	}
	var sess session
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &sess); err != nil {
		return nil, err
	}
	c.Token, c.User = sess.Token, &sess.User
	return &sess.User, nil
}

// Login exchanges credentials for a token and keeps it.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	var sess session
	if err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &sess); err != nil {
		return nil, err
	}
	c.Token, c.User = sess.Token, &sess.User
	return &sess.User, nil
}

func (c *Client) CreatePost(ctx context.Context, title, content string) (*model.Post, error) {
	var p model.Post
	if err := c.do(ctx, http.MethodPost, "/posts", map[string]string{"title": title, "content": content}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) SearchPosts(ctx context.Context, query string) ([]model.Post, error) {
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/posts/search?query="+url.QueryEscape(query), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost returns the post with its comments resolved.
func (c *Client) GetPost(ctx context.Context, id string) (*model.PostDetail, error) {
	var p model.PostDetail
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	var p model.Post
	if err := c.do(ctx, http.MethodPatch, "/posts/"+url.PathEscape(id), patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddComment(ctx context.Context, postID, content string) (*model.Comment, error) {
	var cm model.Comment
	if err := c.do(ctx, http.MethodPost, commentsPath(postID), map[string]string{"content": content}, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

func (c *Client) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	var comments []model.Comment
	if err := c.do(ctx, http.MethodGet, commentsPath(postID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) UpdateComment(ctx context.Context, postID, commentID, content string) (*model.Comment, error) {
	var cm model.Comment
	path := commentsPath(postID) + "/" + url.PathEscape(commentID)
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{"content": content}, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) error {
	return c.do(ctx, http.MethodDelete, commentsPath(postID)+"/"+url.PathEscape(commentID), nil, nil)
}

// Health reports whether the server and its store are up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Version returns the server's build information.
func (c *Client) Version(ctx context.Context) (map[string]string, error) {
	var v map[string]string
	if err := c.do(ctx, http.MethodGet, "/version", nil, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func commentsPath(postID string) string {
	return "/posts/" + url.PathEscape(postID) + "/comments"
}

// do performs a JSON request and decodes a 2xx body into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// TestHelper provides utilities for creating authenticated clients in tests.
type TestHelper struct {
	BaseURL string
}

// NewTestHelper creates a new test helper for the given base URL.
func NewTestHelper(baseURL string) *TestHelper {
	return &TestHelper{BaseURL: baseURL}
}

// CreateAuthenticatedClient registers name@example.com with a derived
// password and returns a client holding its token.
func (h *TestHelper) CreateAuthenticatedClient(ctx context.Context, name string) (*Client, error) {
	c := New(h.BaseURL)
	if _, err := c.Register(ctx, name, name+"@example.com", "pw-"+name, ""); err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}

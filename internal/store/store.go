package store

import (
	"context"
	"errors"

	"github.com/alphabot-ai/quill/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrInvalid   = errors.New("invalid record")
)

type Store interface {
	UserStore
	PostStore
	CommentStore
	Ping(ctx context.Context) error
	Close() error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (model.Post, error)
	GetPostDetail(ctx context.Context, id string) (model.PostDetail, error)
	ListPosts(ctx context.Context) ([]model.Post, error)
	// UpdatePost and DeletePost return ErrNotFound both when the post does
	// not exist and when authorID does not own it.
	UpdatePost(ctx context.Context, id, authorID string, patch model.PostPatch) (model.Post, error)
	DeletePost(ctx context.Context, id, authorID string) error
	SearchPosts(ctx context.Context, query string) ([]model.Post, error)
}

type CommentStore interface {
	// AddComment inserts the comment and appends it to its post's comment
	// list in one transaction. ErrNotFound if the post does not exist.
	AddComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
	UpdateComment(ctx context.Context, id, authorID, content string) (model.Comment, error)
	// DeleteComment removes the comment and pulls it from its post's list in
	// one transaction.
	DeleteComment(ctx context.Context, id, authorID string) error
}

//go:build integration
// +build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alphabot-ai/quill/internal/model"
	"github.com/alphabot-ai/quill/internal/store"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("quill"),
		tcpostgres.WithUsername("quill"),
		tcpostgres.WithPassword("quill"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	st, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestIntegration_BlogFlow(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	alice := model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	if err := st.CreateUser(ctx, &alice); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dup := model.User{Username: "alice2", Email: "ALICE@example.com", PasswordHash: "hash"}
	if err := st.CreateUser(ctx, &dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("want duplicate, got %v", err)
	}

	gopher := model.Post{Title: "Go generics", Content: "type parameters in go are handy", Author: alice.Ref()}
	if err := st.CreatePost(ctx, &gopher); err != nil {
		t.Fatalf("create post: %v", err)
	}
	crab := model.Post{Title: "Rust lifetimes", Content: "borrow checker stories", Author: alice.Ref()}
	if err := st.CreatePost(ctx, &crab); err != nil {
		t.Fatalf("create post: %v", err)
	}

	list, err := st.ListPosts(ctx)
	if err != nil || len(list) != 2 || list[0].ID != crab.ID {
		t.Fatalf("expected newest first, got %+v (%v)", list, err)
	}

	c := model.Comment{Content: "great", Author: alice.Ref(), PostID: gopher.ID}
	if err := st.AddComment(ctx, &c); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	detail, err := st.GetPostDetail(ctx, gopher.ID)
	if err != nil || len(detail.Comments) != 1 || detail.Comments[0].Author.Username != "alice" {
		t.Fatalf("unexpected detail: %+v (%v)", detail, err)
	}

	found, err := st.SearchPosts(ctx, "generics")
	if err != nil || len(found) != 1 || found[0].ID != gopher.ID || found[0].Score <= 0 {
		t.Fatalf("unexpected search result: %+v (%v)", found, err)
	}
	found, err = st.SearchPosts(ctx, "go rust -borrow")
	if err != nil || len(found) != 1 || found[0].ID != gopher.ID {
		t.Fatalf("unexpected exclusion result: %+v (%v)", found, err)
	}

	if err := st.DeleteComment(ctx, c.ID, alice.ID); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	p, err := st.GetPost(ctx, gopher.ID)
	if err != nil || len(p.CommentIDs) != 0 {
		t.Fatalf("expected empty comment list, got %+v (%v)", p, err)
	}
	if err := st.DeletePost(ctx, gopher.ID, "someone-else"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

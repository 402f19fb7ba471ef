// Package postgres implements store.Store on PostgreSQL through the pgx
// database/sql driver. The schema is managed with goose.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/quill/internal/model"
	"github.com/alphabot-ai/quill/internal/search"
	"github.com/alphabot-ai/quill/internal/store"
	"github.com/alphabot-ai/quill/internal/store/dbx"
	"github.com/alphabot-ai/quill/internal/store/postgres/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ---- users

const userColumns = `id, username, email, password_hash, bio, following, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if err := store.NormalizeUser(user); err != nil {
		return err
	}
	following, err := json.Marshal(user.Following)
	if err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt

	_, err = s.db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, user.ID, user.Username, user.Email, user.PasswordHash, user.Bio, string(following), user.CreatedAt, user.UpdatedAt)
	if isUniqueErr(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// ---- posts

const postColumns = `p.id, p.title, p.content, p.author_id, COALESCE(u.username, ''), p.created_at, p.updated_at,
	(SELECT COALESCE(json_agg(pc.comment_id ORDER BY pc.position), '[]'::json)
	   FROM post_comments pc WHERE pc.post_id = p.id)`

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	if err := store.NormalizePost(post); err != nil {
		return err
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.CreatedAt = now()
	post.UpdatedAt = post.CreatedAt

	err := s.db.QueryRowContext(ctx, `
WITH inserted AS (
	INSERT INTO posts (id, title, content, author_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING author_id
)
SELECT COALESCE(u.username, '') FROM inserted i LEFT JOIN users u ON u.id = i.author_id
`, post.ID, post.Title, post.Content, post.Author.ID, post.CreatedAt, post.UpdatedAt).Scan(&post.Author.Username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (model.Post, error) {
	return getPost(ctx, s.db, id)
}

func getPost(ctx context.Context, q dbx.DBTX, id string) (model.Post, error) {
	return scanPost(q.QueryRowContext(ctx, `
SELECT `+postColumns+`
FROM posts p
LEFT JOIN users u ON u.id = p.author_id
WHERE p.id = $1
`, id))
}

func (s *Store) GetPostDetail(ctx context.Context, id string) (model.PostDetail, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return model.PostDetail{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+commentColumns+`
FROM post_comments pc
JOIN comments c ON c.id = pc.comment_id
LEFT JOIN users u ON u.id = c.author_id
WHERE pc.post_id = $1
ORDER BY pc.position
`, id)
	if err != nil {
		return model.PostDetail{}, fmt.Errorf("db error: %w", err)
	}
	comments, err := scanComments(rows)
	if err != nil {
		return model.PostDetail{}, err
	}
	return model.PostDetail{Post: post, Comments: comments}, nil
}

func (s *Store) ListPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+postColumns+`
FROM posts p
LEFT JOIN users u ON u.id = p.author_id
ORDER BY p.created_at DESC, p.id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanPosts(rows, false)
}

func (s *Store) UpdatePost(ctx context.Context, id, authorID string, patch model.PostPatch) (model.Post, error) {
	var updated model.Post
	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		post, err := getPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if post.Author.ID != authorID {
			return store.ErrNotFound
		}
		if err := store.ApplyPostPatch(&post, patch); err != nil {
			return err
		}
		post.UpdatedAt = now()
		if _, err := tx.ExecContext(ctx, `
UPDATE posts SET title = $1, content = $2, updated_at = $3 WHERE id = $4
`, post.Title, post.Content, post.UpdatedAt, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		updated = post
		return nil
	})
	return updated, err
}

// DeletePost removes the post. Its comment list goes with it through the
// post_comments foreign key; comment rows stay.
func (s *Store) DeletePost(ctx context.Context, id, authorID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SearchPosts(ctx context.Context, query string) ([]model.Post, error) {
	tsq := search.Parse(query).TSQuery()
	if tsq == "" {
		return []model.Post{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+postColumns+`, ts_rank(p.search, q) AS score
FROM posts p
CROSS JOIN to_tsquery('english', $1) AS q
LEFT JOIN users u ON u.id = p.author_id
WHERE p.search @@ q
ORDER BY score DESC, p.created_at DESC
`, tsq)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanPosts(rows, true)
}

// ---- comments

const commentColumns = `c.id, c.content, c.author_id, COALESCE(u.username, ''), c.post_id, c.created_at, c.updated_at`

func (s *Store) AddComment(ctx context.Context, comment *model.Comment) error {
	if comment.PostID == "" {
		return store.ErrNotFound
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.CreatedAt = now()
	comment.UpdatedAt = comment.CreatedAt

	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var postID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, comment.PostID).Scan(&postID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if err := store.NormalizeComment(comment); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO comments (id, content, author_id, post_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, comment.ID, comment.Content, comment.Author.ID, comment.PostID, comment.CreatedAt, comment.UpdatedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO post_comments (post_id, comment_id, position)
SELECT $1, $2, COALESCE(MAX(position), 0) + 1 FROM post_comments WHERE post_id = $1
`, comment.PostID, comment.ID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		got, err := getComment(ctx, tx, comment.ID)
		if err != nil {
			return err
		}
		*comment = got
		return nil
	})
}

func getComment(ctx context.Context, q dbx.DBTX, id string) (model.Comment, error) {
	rows, err := q.QueryContext(ctx, `
SELECT `+commentColumns+`
FROM comments c
LEFT JOIN users u ON u.id = c.author_id
WHERE c.id = $1
`, id)
	if err != nil {
		return model.Comment{}, fmt.Errorf("db error: %w", err)
	}
	comments, err := scanComments(rows)
	if err != nil {
		return model.Comment{}, err
	}
	if len(comments) == 0 {
		return model.Comment{}, store.ErrNotFound
	}
	return comments[0], nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+commentColumns+`
FROM comments c
LEFT JOIN users u ON u.id = c.author_id
WHERE c.post_id = $1
ORDER BY c.created_at DESC, c.id DESC
`, postID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanComments(rows)
}

func (s *Store) UpdateComment(ctx context.Context, id, authorID, content string) (model.Comment, error) {
	var updated model.Comment
	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		comment, err := getComment(ctx, tx, id)
		if err != nil {
			return err
		}
		if comment.Author.ID != authorID {
			return store.ErrNotFound
		}
		comment.Content = content
		if err := store.NormalizeComment(&comment); err != nil {
			return err
		}
		comment.UpdatedAt = now()
		if _, err := tx.ExecContext(ctx, `
UPDATE comments SET content = $1, updated_at = $2 WHERE id = $3
`, comment.Content, comment.UpdatedAt, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		updated = comment
		return nil
	})
	return updated, err
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) error {
	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var postID string
		err := tx.QueryRowContext(ctx, `
DELETE FROM comments WHERE id = $1 AND author_id = $2 RETURNING post_id
`, id, authorID).Scan(&postID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
DELETE FROM post_comments WHERE post_id = $1 AND comment_id = $2
`, postID, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

// ---- scanning

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	var following []byte
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Bio, &following, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(following, &u.Following); err != nil || u.Following == nil {
		u.Following = []string{}
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func scanPost(row scanner, extra ...any) (model.Post, error) {
	var p model.Post
	var commentIDs []byte
	dest := append([]any{&p.ID, &p.Title, &p.Content, &p.Author.ID, &p.Author.Username, &p.CreatedAt, &p.UpdatedAt, &commentIDs}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(commentIDs, &p.CommentIDs); err != nil || p.CommentIDs == nil {
		p.CommentIDs = []string{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func scanPosts(rows *sql.Rows, withScore bool) ([]model.Post, error) {
	defer rows.Close()
	posts := []model.Post{}
	for rows.Next() {
		var score float64
		var extra []any
		if withScore {
			extra = append(extra, &score)
		}
		p, err := scanPost(rows, extra...)
		if err != nil {
			return nil, err
		}
		p.Score = score
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return posts, nil
}

func scanComments(rows *sql.Rows) ([]model.Comment, error) {
	defer rows.Close()
	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.Content, &c.Author.ID, &c.Author.Username, &c.PostID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return comments, nil
}

func isUniqueErr(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

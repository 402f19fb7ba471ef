package sqlite

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

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// dsn appends the pragmas every pooled connection must run on connect.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: users, posts, comments and the ordered comment list
	`
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	bio TEXT NOT NULL DEFAULT '',
	following TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	author_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(author_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	author_id TEXT NOT NULL,
	post_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(author_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id, created_at DESC);

CREATE TABLE IF NOT EXISTS post_comments (
	post_id TEXT NOT NULL,
	comment_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (post_id, comment_id)
);
CREATE INDEX IF NOT EXISTS idx_post_comments_position ON post_comments(post_id, position);
`,
	// Migration 2: full-text index over post title and content
	`
CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5(
	post_id UNINDEXED,
	title,
	content,
	tokenize = 'porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS posts_fts_insert AFTER INSERT ON posts BEGIN
	INSERT INTO posts_fts (post_id, title, content) VALUES (new.id, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS posts_fts_update AFTER UPDATE OF title, content ON posts BEGIN
	UPDATE posts_fts SET title = new.title, content = new.content WHERE post_id = old.id;
END;

CREATE TRIGGER IF NOT EXISTS posts_fts_delete AFTER DELETE ON posts BEGIN
	DELETE FROM posts_fts WHERE post_id = old.id;
END;
`,
	// Migration 3: give posts an integer rowid alias and key the full-text
	// index on it, so index maintenance is a rowid lookup.
	`
DROP TRIGGER IF EXISTS posts_fts_insert;
DROP TRIGGER IF EXISTS posts_fts_update;
DROP TRIGGER IF EXISTS posts_fts_delete;
DROP TABLE IF EXISTS posts_fts;

CREATE TABLE posts_v3 (
	seq INTEGER PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	author_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(author_id) REFERENCES users(id)
);
INSERT INTO posts_v3 (seq, id, title, content, author_id, created_at, updated_at)
SELECT rowid, id, title, content, author_id, created_at, updated_at FROM posts;
DROP TABLE posts;
ALTER TABLE posts_v3 RENAME TO posts;
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);

CREATE VIRTUAL TABLE posts_fts USING fts5(
	title,
	content,
	content = 'posts',
	content_rowid = 'seq',
	tokenize = 'porter unicode61'
);
INSERT INTO posts_fts (posts_fts) VALUES ('rebuild');

CREATE TRIGGER posts_fts_insert AFTER INSERT ON posts BEGIN
	INSERT INTO posts_fts (rowid, title, content) VALUES (new.seq, new.title, new.content);
END;

CREATE TRIGGER posts_fts_update AFTER UPDATE OF title, content ON posts BEGIN
	INSERT INTO posts_fts (posts_fts, rowid, title, content) VALUES ('delete', old.seq, old.title, old.content);
	INSERT INTO posts_fts (rowid, title, content) VALUES (new.seq, new.title, new.content);
END;

CREATE TRIGGER posts_fts_delete AFTER DELETE ON posts BEGIN
	INSERT INTO posts_fts (posts_fts, rowid, title, content) VALUES ('delete', old.seq, old.title, old.content);
END;
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

// ---- users

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
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx, `
INSERT INTO users (id, username, email, password_hash, bio, following, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, user.ID, user.Username, user.Email, user.PasswordHash, user.Bio, string(following), now.UnixNano(), now.UnixNano())
	if isUniqueErr(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, email, password_hash, bio, following, created_at, updated_at
FROM users WHERE id = ?
`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, username, email, password_hash, bio, following, created_at, updated_at
FROM users WHERE email = ?
`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// ---- posts

// postColumns ends with the post's comment ids in list order, as a JSON array.
const postColumns = `p.id, p.title, p.content, p.author_id, COALESCE(u.username, ''), p.created_at, p.updated_at,
	(SELECT json_group_array(pc.comment_id ORDER BY pc.position) FROM post_comments pc WHERE pc.post_id = p.id)`

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	if err := store.NormalizePost(post); err != nil {
		return err
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now

	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO posts (id, title, content, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`, post.ID, post.Title, post.Content, post.Author.ID, now.UnixNano(), now.UnixNano()); err != nil {
			return err
		}
		var username string
		err := tx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, post.Author.ID).Scan(&username)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		post.Author.Username = username
		return nil
	})
}

func (s *Store) GetPost(ctx context.Context, id string) (model.Post, error) {
	return getPost(ctx, s.db, id)
}

func getPost(ctx context.Context, q dbx.DBTX, id string) (model.Post, error) {
	row := q.QueryRowContext(ctx, `
SELECT `+postColumns+`
FROM posts p
LEFT JOIN users u ON u.id = p.author_id
WHERE p.id = ?
`, id)
	return scanPost(row)
}

func (s *Store) GetPostDetail(ctx context.Context, id string) (model.PostDetail, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return model.PostDetail{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.content, c.author_id, COALESCE(u.username, ''), c.post_id, c.created_at, c.updated_at
FROM post_comments pc
JOIN comments c ON c.id = pc.comment_id
LEFT JOIN users u ON u.id = c.author_id
WHERE pc.post_id = ?
ORDER BY pc.position
`, id)
	if err != nil {
		return model.PostDetail{}, err
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
ORDER BY p.created_at DESC, p.rowid DESC
`)
	if err != nil {
		return nil, err
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
		post.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?
`, post.Title, post.Content, post.UpdatedAt.UnixNano(), id); err != nil {
			return err
		}
		updated = post
		return nil
	})
	return updated, err
}

func (s *Store) DeletePost(ctx context.Context, id, authorID string) error {
	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ? AND author_id = ?`, id, authorID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return store.ErrNotFound
		}
		// The comment list goes with the post; comment rows are left alone.
		_, err = tx.ExecContext(ctx, `DELETE FROM post_comments WHERE post_id = ?`, id)
		return err
	})
}

func (s *Store) SearchPosts(ctx context.Context, query string) ([]model.Post, error) {
	match := search.Parse(query).FTS5()
	if match == "" {
		return []model.Post{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+postColumns+`, -bm25(posts_fts) AS score
FROM posts_fts
JOIN posts p ON p.seq = posts_fts.rowid
LEFT JOIN users u ON u.id = p.author_id
WHERE posts_fts MATCH ?
ORDER BY score DESC, p.created_at DESC
`, match)
	if err != nil {
		return nil, err
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
	now := time.Now().UTC()
	comment.CreatedAt, comment.UpdatedAt = now, now

	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM posts WHERE id = ?`, comment.PostID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		if err := store.NormalizeComment(comment); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO comments (id, content, author_id, post_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`, comment.ID, comment.Content, comment.Author.ID, comment.PostID, now.UnixNano(), now.UnixNano()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO post_comments (post_id, comment_id, position)
SELECT ?, ?, COALESCE(MAX(position), 0) + 1 FROM post_comments WHERE post_id = ?
`, comment.PostID, comment.ID, comment.PostID); err != nil {
			return err
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
WHERE c.id = ?
`, id)
	if err != nil {
		return model.Comment{}, err
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
WHERE c.post_id = ?
ORDER BY c.created_at DESC, c.rowid DESC
`, postID)
	if err != nil {
		return nil, err
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
		comment.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
UPDATE comments SET content = ?, updated_at = ? WHERE id = ?
`, comment.Content, comment.UpdatedAt.UnixNano(), id); err != nil {
			return err
		}
		updated = comment
		return nil
	})
	return updated, err
}

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) error {
	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var postID string
		err := tx.QueryRowContext(ctx, `SELECT post_id FROM comments WHERE id = ? AND author_id = ?`, id, authorID).Scan(&postID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM post_comments WHERE post_id = ? AND comment_id = ?`, postID, id)
		return err
	})
}

// ---- scanning

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	var following string
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Bio, &following, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	if err := json.Unmarshal([]byte(following), &u.Following); err != nil || u.Following == nil {
		u.Following = []string{}
	}
	u.CreatedAt = fromNanos(created)
	u.UpdatedAt = fromNanos(updated)
	return u, nil
}

func scanPost(row scanner, extra ...any) (model.Post, error) {
	var p model.Post
	var created, updated int64
	var commentIDs sql.NullString
	dest := append([]any{&p.ID, &p.Title, &p.Content, &p.Author.ID, &p.Author.Username, &created, &updated, &commentIDs}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	p.CreatedAt = fromNanos(created)
	p.UpdatedAt = fromNanos(updated)
	if commentIDs.Valid {
		if err := json.Unmarshal([]byte(commentIDs.String), &p.CommentIDs); err != nil {
			return model.Post{}, fmt.Errorf("decode comment ids of %s: %w", p.ID, err)
		}
	}
	if p.CommentIDs == nil {
		p.CommentIDs = []string{}
	}
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
	return posts, rows.Err()
}

func scanComments(rows *sql.Rows) ([]model.Comment, error) {
	defer rows.Close()
	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Content, &c.Author.ID, &c.Author.Username, &c.PostID, &created, &updated); err != nil {
			return nil, err
		}
		c.CreatedAt = fromNanos(created)
		c.UpdatedAt = fromNanos(updated)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueErr(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

package model

import "time"

// AuthorRef is the public projection of a User embedded in posts and comments.
type AuthorRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio"`
	Following    []string  `json:"following"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) Ref() AuthorRef {
	return AuthorRef{ID: u.ID, Username: u.Username}
}

type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Author     AuthorRef `json:"author"`
	CommentIDs []string  `json:"comments"`
	Score      float64   `json:"score,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PostDetail is a Post with its comment list resolved.
type PostDetail struct {
	Post
	Comments []Comment `json:"comments"`
}

// PostPatch holds the editable post fields. Nil fields are left untouched.
type PostPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    AuthorRef `json:"author"`
	PostID    string    `json:"post"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

package store

import (
	"fmt"
	"strings"

	"github.com/alphabot-ai/quill/internal/model"
)

// NormalizeUser trims username and email, lowercases email and checks the
// required fields. Backends call it before every user insert.
func NormalizeUser(u *model.User) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	switch {
	case u.Username == "":
		return fmt.Errorf("%w: username required", ErrInvalid)
	case u.Email == "":
		return fmt.Errorf("%w: email required", ErrInvalid)
	case u.PasswordHash == "":
		return fmt.Errorf("%w: password required", ErrInvalid)
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	return nil
}

func NormalizePost(p *model.Post) error {
	p.Title = strings.TrimSpace(p.Title)
	switch {
	case p.Title == "":
		return fmt.Errorf("%w: title required", ErrInvalid)
	case p.Content == "":
		return fmt.Errorf("%w: content required", ErrInvalid)
	case p.Author.ID == "":
		return fmt.Errorf("%w: author required", ErrInvalid)
	}
	if p.CommentIDs == nil {
		p.CommentIDs = []string{}
	}
	return nil
}

// ApplyPostPatch overwrites the fields present in patch and re-validates.
func ApplyPostPatch(p *model.Post, patch model.PostPatch) error {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	return NormalizePost(p)
}

func NormalizeComment(c *model.Comment) error {
	switch {
	case c.Content == "":
		return fmt.Errorf("%w: content required", ErrInvalid)
	case c.Author.ID == "":
		return fmt.Errorf("%w: author required", ErrInvalid)
	case c.PostID == "":
		return fmt.Errorf("%w: post required", ErrInvalid)
	}
	return nil
}

package httpapp

import (
	"errors"
	"net/http"

	"github.com/alphabot-ai/quill/internal/model"
	"github.com/alphabot-ai/quill/internal/store"

	"github.com/gorilla/mux"
)

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// handleCreatePost godoc
//
//	@Summary	Create a post
//	@Tags		Posts
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		post	body		postRequest	true	"Post"
//	@Success	201		{object}	model.Post
//	@Failure	400		{object}	map[string]string	"Could not create post"
//	@Failure	401		{object}	map[string]string	"Please authenticate"
//	@Router		/posts [post]
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req postRequest
	if err := readJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		s.log.Warn(r.Context(), "create post: bad body", "err", err)
		writeError(w, http.StatusBadRequest, "Could not create post")
		return
	}
	post := model.Post{Title: req.Title, Content: req.Content, Author: user.Ref()}
	if err := s.store.CreatePost(r.Context(), &post); err != nil {
		s.log.Warn(r.Context(), "create post failed", "user", user.ID, "err", err)
		writeError(w, http.StatusBadRequest, "Could not create post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// handleListPosts godoc
//
//	@Summary		List posts
//	@Description	All posts, newest first.
//	@Tags			Posts
//	@Produce		json
//	@Success		200	{array}		model.Post
//	@Failure		500	{object}	map[string]string	"Could not fetch posts"
//	@Router			/posts [get]
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.ListPosts(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "list posts failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Could not fetch posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// handleSearchPosts godoc
//
//	@Summary		Search posts
//	@Description	Full-text search over title and content, best match first. Terms are OR'ed, "quoted phrases" are required and -term excludes.
//	@Tags			Posts
//	@Produce		json
//	@Param			query	query		string	true	"Search text"
//	@Success		200		{array}		model.Post
//	@Failure		500		{object}	map[string]string	"Could not search posts"
//	@Router			/posts/search [get]
func (s *Server) handleSearchPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		q = r.URL.Query().Get("q")
	}
	posts, err := s.store.SearchPosts(r.Context(), q)
	if err != nil {
		s.log.Error(r.Context(), "search posts failed", "query", q, "err", err)
		writeError(w, http.StatusInternalServerError, "Could not search posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// handleGetPost godoc
//
//	@Summary		Get a post
//	@Description	A single post with its author and comments resolved.
//	@Tags			Posts
//	@Produce		json
//	@Param			id	path		string	true	"Post ID"
//	@Success		200	{object}	model.PostDetail
//	@Failure		404	{object}	map[string]string	"Post not found"
//	@Failure		500	{object}	map[string]string	"Could not fetch post"
//	@Router			/posts/{id} [get]
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	post, err := s.store.GetPostDetail(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "get post failed", "post", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Could not fetch post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleUpdatePost godoc
//
//	@Summary		Update a post
//	@Description	Overwrites the supplied title and content. Other fields are ignored. Posts owned by someone else are reported as not found.
//	@Tags			Posts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string			true	"Post ID"
//	@Param			patch	body		model.PostPatch	true	"Fields to change"
//	@Success		200		{object}	model.Post
//	@Failure		400		{object}	map[string]string	"Could not update post"
//	@Failure		401		{object}	map[string]string	"Please authenticate"
//	@Failure		404		{object}	map[string]string	"Post not found"
//	@Router			/posts/{id} [patch]
func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id := mux.Vars(r)["id"]
	var patch model.PostPatch
	if err := readJSON(w, r, s.cfg.MaxBodyBytes, &patch); err != nil {
		s.log.Warn(r.Context(), "update post: bad body", "err", err)
		writeError(w, http.StatusBadRequest, "Could not update post")
		return
	}
	post, err := s.store.UpdatePost(r.Context(), id, user.ID, patch)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.log.Warn(r.Context(), "update post failed", "post", id, "err", err)
		writeError(w, http.StatusBadRequest, "Could not update post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleDeletePost godoc
//
//	@Summary	Delete a post
//	@Tags		Posts
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Post ID"
//	@Success	200	{object}	messageResponse
//	@Failure	401	{object}	map[string]string	"Please authenticate"
//	@Failure	404	{object}	map[string]string	"Post not found"
//	@Failure	500	{object}	map[string]string	"Could not delete post"
//	@Router		/posts/{id} [delete]
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id := mux.Vars(r)["id"]
	err := s.store.DeletePost(r.Context(), id, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "delete post failed", "post", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Could not delete post")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Post deleted successfully"})
}

package httpapp

import (
	"errors"
	"net/http"

	"github.com/alphabot-ai/quill/internal/model"
	"github.com/alphabot-ai/quill/internal/store"

	"github.com/gorilla/mux"
)

type commentRequest struct {
	Content string `json:"content"`
}

// handleAddComment godoc
//
//	@Summary	Comment on a post
//	@Tags		Comments
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		postId	path		string			true	"Post ID"
//	@Param		comment	body		commentRequest	true	"Comment"
//	@Success	201		{object}	model.Comment
//	@Failure	400		{object}	map[string]string	"Could not add comment"
//	@Failure	401		{object}	map[string]string	"Please authenticate"
//	@Failure	404		{object}	map[string]string	"Post not found"
//	@Router		/posts/{postId}/comments [post]
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	postID := mux.Vars(r)["postId"]
	var req commentRequest
	if err := readJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		s.log.Warn(r.Context(), "add comment: bad body", "err", err)
		writeError(w, http.StatusBadRequest, "Could not add comment")
		return
	}
	comment := model.Comment{Content: req.Content, Author: user.Ref(), PostID: postID}
	err := s.store.AddComment(r.Context(), &comment)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.log.Warn(r.Context(), "add comment failed", "post", postID, "err", err)
		writeError(w, http.StatusBadRequest, "Could not add comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// handleListComments godoc
//
//	@Summary		List comments
//	@Description	Comments on a post, newest first. An unknown post yields an empty list.
//	@Tags			Comments
//	@Produce		json
//	@Param			postId	path		string	true	"Post ID"
//	@Success		200		{array}		model.Comment
//	@Failure		500		{object}	map[string]string	"Could not fetch comments"
//	@Router			/posts/{postId}/comments [get]
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID := mux.Vars(r)["postId"]
	comments, err := s.store.ListComments(r.Context(), postID)
	if err != nil {
		s.log.Error(r.Context(), "list comments failed", "post", postID, "err", err)
		writeError(w, http.StatusInternalServerError, "Could not fetch comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// handleUpdateComment godoc
//
//	@Summary	Edit a comment
//	@Tags		Comments
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		postId		path		string			true	"Post ID"
//	@Param		commentId	path		string			true	"Comment ID"
//	@Param		comment		body		commentRequest	true	"New content"
//	@Success	200			{object}	model.Comment
//	@Failure	400			{object}	map[string]string	"Could not update comment"
//	@Failure	401			{object}	map[string]string	"Please authenticate"
//	@Failure	404			{object}	map[string]string	"Comment not found"
//	@Router		/posts/{postId}/comments/{commentId} [patch]
func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id := mux.Vars(r)["commentId"]
	var req commentRequest
	if err := readJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		s.log.Warn(r.Context(), "update comment: bad body", "err", err)
		writeError(w, http.StatusBadRequest, "Could not update comment")
		return
	}
	comment, err := s.store.UpdateComment(r.Context(), id, user.ID, req.Content)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		s.log.Warn(r.Context(), "update comment failed", "comment", id, "err", err)
		writeError(w, http.StatusBadRequest, "Could not update comment")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// handleDeleteComment godoc
//
//	@Summary	Delete a comment
//	@Tags		Comments
//	@Produce	json
//	@Security	BearerAuth
//	@Param		postId		path		string	true	"Post ID"
//	@Param		commentId	path		string	true	"Comment ID"
//	@Success	200			{object}	messageResponse
//	@Failure	401			{object}	map[string]string	"Please authenticate"
//	@Failure	404			{object}	map[string]string	"Comment not found"
//	@Failure	500			{object}	map[string]string	"Could not delete comment"
//	@Router		/posts/{postId}/comments/{commentId} [delete]
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id := mux.Vars(r)["commentId"]
	err := s.store.DeleteComment(r.Context(), id, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "delete comment failed", "comment", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Could not delete comment")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Comment deleted successfully"})
}

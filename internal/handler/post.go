package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/auth"
	"github.com/sakif/devconnect/internal/model"
)

// PostService is what PostHandler needs from the service layer.
// *service.PostService satisfies it.
type PostService interface {
	Create(ctx context.Context, id auth.Identity, text string) (*model.Post, error)
	List(ctx context.Context) ([]model.Post, error)
	GetByID(ctx context.Context, postID string) (*model.Post, error)
	Delete(ctx context.Context, id auth.Identity, postID string) error
	Like(ctx context.Context, id auth.Identity, postID string) ([]model.Like, error)
	Unlike(ctx context.Context, id auth.Identity, postID string) ([]model.Like, error)
	AddComment(ctx context.Context, id auth.Identity, postID, text string) ([]model.Comment, error)
	RemoveComment(ctx context.Context, id auth.Identity, postID, commentID string) ([]model.Comment, error)
}

// PostHandler serves /api/posts. Every route sits behind auth.RequireAuth,
// so the caller's identity is always in the request context.
type PostHandler struct {
	posts  PostService
	logger *slog.Logger
}

func NewPostHandler(posts PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// Routes mounts the post endpoints on r.
func (h *PostHandler) Routes(r chi.Router) {
	r.Post("/", h.HandleCreate)
	r.Get("/", h.HandleList)
	r.Get("/{id}", h.HandleGet)
	r.Delete("/{id}", h.HandleDelete)
	r.Put("/like/{id}", h.HandleLike)
	r.Put("/unlike/{id}", h.HandleUnlike)
	r.Post("/comment/{id}", h.HandleAddComment)
	r.Delete("/comment/{id}/{commentId}", h.HandleRemoveComment)
}

type textRequest struct {
	Text string `json:"text"`
}

// identity returns the caller set by the auth gate. Missing identity means
// the route was mounted without the gate, which is reported as 401.
func (h *PostHandler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" {
		writeError(w, r, h.logger, apperror.Unauthenticated(auth.MsgNoToken))
		return auth.Identity{}, false
	}
	return id, true
}

// HandleCreate: POST /api/posts {"text": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	post, err := h.posts.Create(r.Context(), id, req.Text)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleList: GET /api/posts, newest first.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}

	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}

	post, err := h.posts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete: DELETE /api/posts/{id}, author only.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post removed"})
}

// HandleLike: PUT /api/posts/like/{id}, responds with the post's likes.
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	likes, err := h.posts.Like(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, likes)
}

// HandleUnlike: PUT /api/posts/unlike/{id}, responds with the post's likes.
func (h *PostHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	likes, err := h.posts.Unlike(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, likes)
}

// HandleAddComment: POST /api/posts/comment/{id} {"text": "..."},
// responds with the post's comments.
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	comments, err := h.posts.AddComment(r.Context(), id, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleRemoveComment: DELETE /api/posts/comment/{id}/{commentId}
func (h *PostHandler) HandleRemoveComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	comments, err := h.posts.RemoveComment(r.Context(), id, chi.URLParam(r, "id"), chi.URLParam(r, "commentId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

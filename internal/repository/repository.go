// Package repository declares the storage contracts the services depend on.
//
// Implementations live in sub-packages (sqlite, mongostore). Services only ever
// see these interfaces, so the backend is picked once in the composition
// root and nothing else changes.
package repository

import (
	"context"

	"github.com/sakif/devconnect/internal/model"
)

// PostRepository is the post store accessor.
//
// ATOMICITY:
// Every method is atomic with respect to a single post. The like and comment
// methods are conditional updates, not load-modify-store: two concurrent
// AddLike calls for the same user can never both succeed, and a rejected
// call leaves the stored list untouched.
//
// ERRORS:
//   - apperror.ErrNotFound     post (or comment) does not exist, or id is malformed
//   - apperror.ErrConflict     AddLike: user already likes the post
//   - apperror.ErrPrecondition RemoveLike: user does not like the post
type PostRepository interface {
	// Create assigns post.ID (and CreatedAt when zero) and stores the post.
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// List returns every post, newest createdAt first.
	List(ctx context.Context) ([]model.Post, error)
	Delete(ctx context.Context, id string) error

	// AddLike prepends like if like.UserID is not already present and
	// returns the resulting likes.
	AddLike(ctx context.Context, postID string, like model.Like) ([]model.Like, error)
	// RemoveLike removes userID's like and returns the resulting likes.
	RemoveLike(ctx context.Context, postID, userID string) ([]model.Like, error)
	// AddComment assigns comment.ID, prepends it and returns the resulting comments.
	AddComment(ctx context.Context, postID string, comment *model.Comment) ([]model.Comment, error)
	// RemoveComment removes the comment with commentID only if it was written
	// by authorID, and returns the resulting comments. Anything else
	// (missing post, missing comment, different author) is ErrNotFound;
	// callers check ownership first to report Forbidden.
	RemoveComment(ctx context.Context, postID, commentID, authorID string) ([]model.Comment, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	// Create inserts a password account. Duplicate email → apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	// Upsert inserts or refreshes a GitHub account keyed by user.GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

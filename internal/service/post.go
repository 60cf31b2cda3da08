// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the store
//
// Services take repository interfaces, never a concrete store, so the same
// PostService runs on SQLite, MongoDB or the in-memory fakes in the tests.
//
// IDENTITY IS EXPLICIT:
// Every operation that acts on behalf of a user takes an auth.Identity
// argument. The handler pulls it out of the request context (where the auth
// gate put it) and passes it down; nothing in this package reads ambient
// request state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/auth"
	"github.com/sakif/devconnect/internal/clock"
	"github.com/sakif/devconnect/internal/model"
	"github.com/sakif/devconnect/internal/repository"
)

// Validation constants and client-facing messages.
const (
	MaxTextLength = 5000

	MsgTextRequired     = "Text is required"
	MsgPostNotFound     = "Post not found"
	MsgAlreadyLiked     = "Post already liked"
	MsgNotLiked         = "Post has not yet been liked"
	MsgCommentNotFound  = "Comment does not exist"
	MsgNotAuthorized    = "User not authorized"
	MsgUserNotFound     = "User not found"
	MsgNotAuthenticated = "No token, authorization denied"
)

// PostService is the post interaction engine: creating and removing posts,
// and the like/unlike/comment mutations on a single post.
//
// MUTATION SHAPE:
// Each mutation loads the post, checks state and ownership against it, then
// asks the repository for ONE atomic conditional update. The load-time check
// gives the right error in the common case; the repository's conditional
// update is what actually guarantees "at most one like per user" when two
// requests race past the check together.
type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		posts:  posts,
		users:  users,
		clock:  clk,
		logger: logger,
	}
}

// Create validates text and stores a new post authored by the caller, with
// the caller's current name and avatar copied onto it.
func (s *PostService) Create(ctx context.Context, id auth.Identity, text string) (*model.Post, error) {
	text, err := validateText(text)
	if err != nil {
		return nil, err
	}

	author, err := s.author(ctx, id)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		AuthorID:  author.ID,
		Name:      author.Name,
		Avatar:    author.Avatar,
		Text:      text,
		CreatedAt: s.clock.NowUTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, s.storeFailure("create", "", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("userID", post.AuthorID),
	)
	return post, nil
}

// List returns every post, newest first.
func (s *PostService) List(ctx context.Context) ([]model.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, s.storeFailure("list", "", err)
	}
	return posts, nil
}

// GetByID returns one post. Missing and malformed ids are both NotFound.
func (s *PostService) GetByID(ctx context.Context, postID string) (*model.Post, error) {
	return s.load(ctx, strings.TrimSpace(postID))
}

// Delete removes the caller's own post together with its likes and comments.
func (s *PostService) Delete(ctx context.Context, id auth.Identity, postID string) error {
	if err := requireIdentity(id); err != nil {
		return err
	}

	post, err := s.load(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != id.UserID {
		return apperror.Forbidden(MsgNotAuthorized)
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage(MsgPostNotFound)
		}
		return s.storeFailure("delete", post.ID, err)
	}

	s.logger.Info("post deleted",
		slog.String("postID", post.ID),
		slog.String("userID", id.UserID),
	)
	return nil
}

// Like adds the caller to the post's likes and returns the new list.
func (s *PostService) Like(ctx context.Context, id auth.Identity, postID string) ([]model.Like, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.HasLike(id.UserID) {
		return nil, apperror.Conflict(MsgAlreadyLiked)
	}

	likes, err := s.posts.AddLike(ctx, post.ID, model.Like{
		UserID:    id.UserID,
		CreatedAt: s.clock.NowUTC(),
	})
	if err != nil {
		return nil, s.mutationFailure("like", post.ID, err)
	}
	return likes, nil
}

// Unlike removes the caller's like and returns the new list.
func (s *PostService) Unlike(ctx context.Context, id auth.Identity, postID string) ([]model.Like, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.HasLike(id.UserID) {
		return nil, apperror.PreconditionFailed(MsgNotLiked)
	}

	likes, err := s.posts.RemoveLike(ctx, post.ID, id.UserID)
	if err != nil {
		return nil, s.mutationFailure("unlike", post.ID, err)
	}
	return likes, nil
}

// AddComment prepends a comment by the caller and returns the new list.
func (s *PostService) AddComment(ctx context.Context, id auth.Identity, postID, text string) ([]model.Comment, error) {
	text, err := validateText(text)
	if err != nil {
		return nil, err
	}

	author, err := s.author(ctx, id)
	if err != nil {
		return nil, err
	}

	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		AuthorID:  author.ID,
		Name:      author.Name,
		Avatar:    author.Avatar,
		Text:      text,
		CreatedAt: s.clock.NowUTC(),
	}
	comments, err := s.posts.AddComment(ctx, post.ID, comment)
	if err != nil {
		return nil, s.mutationFailure("comment", post.ID, err)
	}

	s.logger.Info("comment added",
		slog.String("postID", post.ID),
		slog.String("commentID", comment.ID),
		slog.String("userID", author.ID),
	)
	return comments, nil
}

// RemoveComment deletes exactly the comment identified by commentID. Only
// its author may do so; other comments by the same author are untouched.
func (s *PostService) RemoveComment(ctx context.Context, id auth.Identity, postID, commentID string) ([]model.Comment, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	post, err := s.load(ctx, postID)
	if err != nil {
		return nil, err
	}

	commentID = strings.TrimSpace(commentID)
	c := post.FindComment(commentID)
	if c == nil {
		return nil, apperror.NotFoundMessage(MsgCommentNotFound)
	}
	if c.AuthorID != id.UserID {
		return nil, apperror.Forbidden(MsgNotAuthorized)
	}

	comments, err := s.posts.RemoveComment(ctx, post.ID, commentID, id.UserID)
	if err != nil {
		// The post was loaded a moment ago, so NotFound here means the
		// comment went away in between.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgCommentNotFound)
		}
		return nil, s.mutationFailure("uncomment", post.ID, err)
	}

	s.logger.Info("comment removed",
		slog.String("postID", post.ID),
		slog.String("commentID", commentID),
	)
	return comments, nil
}

// load fetches a post and turns the store's NotFound into the client-facing
// "Post not found".
func (s *PostService) load(ctx context.Context, postID string) (*model.Post, error) {
	if postID == "" {
		return nil, apperror.NotFoundMessage(MsgPostNotFound)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgPostNotFound)
		}
		return nil, s.storeFailure("get", postID, err)
	}
	return post, nil
}

// author resolves the caller's user record for the name/avatar snapshot.
func (s *PostService) author(ctx context.Context, id auth.Identity) (*model.User, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgUserNotFound)
		}
		return nil, s.storeFailure("load author", "", err)
	}
	return user, nil
}

// mutationFailure keeps domain errors from the repository as they are,
// rewording NotFound (the post vanished after load) for the client.
func (s *PostService) mutationFailure(op, postID string, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.NotFoundMessage(MsgPostNotFound)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return s.storeFailure(op, postID, err)
}

// storeFailure logs an unexpected store error and wraps it. The handler
// reports it as a generic 500.
func (s *PostService) storeFailure(op, postID string, err error) error {
	s.logger.Error("post store failure",
		slog.String("op", op),
		slog.String("postID", postID),
		slog.String("error", err.Error()),
	)
	if postID == "" {
		return fmt.Errorf("service/post: %s: %w", op, err)
	}
	return fmt.Errorf("service/post: %s %s: %w", op, postID, err)
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.ValidationFailed("text", MsgTextRequired)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", apperror.ValidationFailed("text",
			fmt.Sprintf("Text must be %d characters or less", MaxTextLength))
	}
	return text, nil
}

func requireIdentity(id auth.Identity) error {
	if id.UserID == "" {
		return apperror.Unauthenticated(MsgNotAuthenticated)
	}
	return nil
}

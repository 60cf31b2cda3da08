package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/model"
	"github.com/sakif/devconnect/internal/repository"
)

var _ repository.PostRepository = (*PostDB)(nil)

// PostDB is the posts view of the database. Get it with DB.Posts().
type PostDB struct {
	conn *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so the loaders below
// can run inside or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// validID reports whether id could have been issued by this store.
// Anything else cannot match a row, so callers short-circuit to NotFound.
func validID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// Create inserts a post. Likes and comments on the argument are ignored;
// a new post starts with neither.
func (db *PostDB) Create(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = orNow(post.CreatedAt)
	post.Likes = []model.Like{}
	post.Comments = []model.Comment{}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, name, avatar, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.AuthorID,
		post.Name,
		post.Avatar,
		post.Text,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	return nil
}

// GetByID loads a post with its likes and comments. The three reads share
// one transaction so a concurrent mutation cannot be seen half-applied.
func (db *PostDB) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if !validID(id) {
		return nil, apperror.NotFound("post", id)
	}

	var post *model.Post
	err := withTx(ctx, db.conn, func(tx *sql.Tx) error {
		var err error
		post, err = loadPost(ctx, tx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return post, nil
}

// List returns every post, newest first. There is no page limit.
//
// Likes and comments are fetched with one query each and grouped in Go,
// instead of two queries per post.
func (db *PostDB) List(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post

	err := withTx(ctx, db.conn, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, user_id, name, avatar, text, created_at
			 FROM posts
			 ORDER BY created_at DESC, seq DESC`)
		if err != nil {
			return fmt.Errorf("listing posts: %w", err)
		}
		defer rows.Close()

		posts = make([]model.Post, 0)
		index := make(map[string]int)
		for rows.Next() {
			var p model.Post
			if err := rows.Scan(&p.ID, &p.AuthorID, &p.Name, &p.Avatar, &p.Text, &p.CreatedAt); err != nil {
				return fmt.Errorf("scanning post row: %w", err)
			}
			p.Likes = []model.Like{}
			p.Comments = []model.Comment{}
			index[p.ID] = len(posts)
			posts = append(posts, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating posts: %w", err)
		}

		likes, err := tx.QueryContext(ctx,
			`SELECT post_id, user_id, created_at FROM post_likes ORDER BY seq DESC`)
		if err != nil {
			return fmt.Errorf("listing likes: %w", err)
		}
		defer likes.Close()
		for likes.Next() {
			var postID string
			var l model.Like
			if err := likes.Scan(&postID, &l.UserID, &l.CreatedAt); err != nil {
				return fmt.Errorf("scanning like row: %w", err)
			}
			if i, ok := index[postID]; ok {
				posts[i].Likes = append(posts[i].Likes, l)
			}
		}
		if err := likes.Err(); err != nil {
			return fmt.Errorf("iterating likes: %w", err)
		}

		comments, err := tx.QueryContext(ctx,
			`SELECT post_id, id, user_id, name, avatar, text, created_at
			 FROM post_comments ORDER BY seq DESC`)
		if err != nil {
			return fmt.Errorf("listing comments: %w", err)
		}
		defer comments.Close()
		for comments.Next() {
			var postID string
			var c model.Comment
			if err := comments.Scan(&postID, &c.ID, &c.AuthorID, &c.Name, &c.Avatar, &c.Text, &c.CreatedAt); err != nil {
				return fmt.Errorf("scanning comment row: %w", err)
			}
			if i, ok := index[postID]; ok {
				posts[i].Comments = append(posts[i].Comments, c)
			}
		}
		return comments.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return posts, nil
}

// Delete removes a post. ON DELETE CASCADE removes its likes and comments.
func (db *PostDB) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return apperror.NotFound("post", id)
	}

	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}

	return nil
}

// AddLike inserts the like unless the user already has one on this post.
//
// The UNIQUE(post_id, user_id) constraint is the actual guard:
// ON CONFLICT DO NOTHING turns a duplicate into "0 rows affected" instead of
// an error, and that is reported as Conflict.
func (db *PostDB) AddLike(ctx context.Context, postID string, like model.Like) ([]model.Like, error) {
	if !validID(postID) {
		return nil, apperror.NotFound("post", postID)
	}

	var likes []model.Like
	err := withTx(ctx, db.conn, func(tx *sql.Tx) error {
		if err := requirePost(ctx, tx, postID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO post_likes (post_id, user_id, created_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT (post_id, user_id) DO NOTHING`,
			postID, like.UserID, orNow(like.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting like: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		} else if n == 0 {
			return apperror.Conflict("Post already liked")
		}

		likes, err = loadLikes(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, wrapMutation("liking", postID, err)
	}
	return likes, nil
}

// RemoveLike deletes the user's like. Zero rows deleted means there was
// nothing to remove.
func (db *PostDB) RemoveLike(ctx context.Context, postID, userID string) ([]model.Like, error) {
	if !validID(postID) {
		return nil, apperror.NotFound("post", postID)
	}

	var likes []model.Like
	err := withTx(ctx, db.conn, func(tx *sql.Tx) error {
		if err := requirePost(ctx, tx, postID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`,
			postID, userID,
		)
		if err != nil {
			return fmt.Errorf("deleting like: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		} else if n == 0 {
			return apperror.PreconditionFailed("Post has not yet been liked")
		}

		likes, err = loadLikes(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, wrapMutation("unliking", postID, err)
	}
	return likes, nil
}

func (db *PostDB) AddComment(ctx context.Context, postID string, comment *model.Comment) ([]model.Comment, error) {
	if !validID(postID) {
		return nil, apperror.NotFound("post", postID)
	}

	var comments []model.Comment
	err := withTx(ctx, db.conn, func(tx *sql.Tx) error {
		if err := requirePost(ctx, tx, postID); err != nil {
			return err
		}

		comment.ID = xid.New().String()
		comment.CreatedAt = orNow(comment.CreatedAt)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO post_comments (id, post_id, user_id, name, avatar, text, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			comment.ID,
			postID,
			comment.AuthorID,
			comment.Name,
			comment.Avatar,
			comment.Text,
			comment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting comment: %w", err)
		}

		comments, err = loadComments(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, wrapMutation("commenting on", postID, err)
	}
	return comments, nil
}

// RemoveComment deletes exactly the row whose id is commentID, and only if
// authorID wrote it.
func (db *PostDB) RemoveComment(ctx context.Context, postID, commentID, authorID string) ([]model.Comment, error) {
	if !validID(postID) {
		return nil, apperror.NotFound("post", postID)
	}

	var comments []model.Comment
	err := withTx(ctx, db.conn, func(tx *sql.Tx) error {
		if err := requirePost(ctx, tx, postID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM post_comments WHERE post_id = ? AND id = ? AND user_id = ?`,
			postID, commentID, authorID,
		)
		if err != nil {
			return fmt.Errorf("deleting comment: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		} else if n == 0 {
			return apperror.NotFound("comment", commentID)
		}

		comments, err = loadComments(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, wrapMutation("removing comment from", postID, err)
	}
	return comments, nil
}

// wrapMutation passes domain errors through untouched (handlers need the
// AppError message) and wraps everything else with context.
func wrapMutation(verb, postID string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("sqlite: %s post %s: %w", verb, postID, err)
}

func requirePost(ctx context.Context, q queryer, postID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one)
	if err == sql.ErrNoRows {
		return apperror.NotFound("post", postID)
	}
	if err != nil {
		return fmt.Errorf("looking up post: %w", err)
	}
	return nil
}

func loadPost(ctx context.Context, q queryer, id string) (*model.Post, error) {
	var p model.Post
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, name, avatar, text, created_at FROM posts WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.AuthorID, &p.Name, &p.Avatar, &p.Text, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting post: %w", err)
	}

	if p.Likes, err = loadLikes(ctx, q, id); err != nil {
		return nil, err
	}
	if p.Comments, err = loadComments(ctx, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func loadLikes(ctx context.Context, q queryer, postID string) ([]model.Like, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT user_id, created_at FROM post_likes WHERE post_id = ? ORDER BY seq DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting likes: %w", err)
	}
	defer rows.Close()

	likes := make([]model.Like, 0)
	for rows.Next() {
		var l model.Like
		if err := rows.Scan(&l.UserID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning like row: %w", err)
		}
		likes = append(likes, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating likes: %w", err)
	}
	return likes, nil
}

func loadComments(ctx context.Context, q queryer, postID string) ([]model.Comment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, name, avatar, text, created_at
		 FROM post_comments WHERE post_id = ? ORDER BY seq DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting comments: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.Name, &c.Avatar, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}

package model

import "time"

// Post is the central social artifact. Likes and comments are embedded in
// the post rather than stored as separate resources, so deleting a post
// takes its likes and comments with it.
//
// DENORMALIZED AUTHOR:
// Name and Avatar are copied from the author's user record when the post is
// written. Later profile edits do not rewrite old posts.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"user"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"text"`
	Likes     []Like    `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

// Like marks one user's approval of a post. A post holds at most one Like
// per UserID; the newest like is first.
type Like struct {
	UserID    string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a reply embedded in a post, newest first. Like Post, it carries
// a snapshot of the author's display fields.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"user"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasLike reports whether userID already likes the post.
func (p *Post) HasLike(userID string) bool {
	for _, l := range p.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

// FindComment returns the comment with the given id, or nil.
func (p *Post) FindComment(commentID string) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			return &p.Comments[i]
		}
	}
	return nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/model"
	"github.com/sakif/devconnect/internal/repository"
)

var _ repository.PostRepository = (*PostStore)(nil)

type PostStore struct {
	coll *mongo.Collection
}

type postDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	User      string        `bson:"user"`
	Name      string        `bson:"name"`
	Avatar    string        `bson:"avatar"`
	Text      string        `bson:"text"`
	Likes     []likeDoc     `bson:"likes"`
	Comments  []commentDoc  `bson:"comments"`
	CreatedAt time.Time     `bson:"created_at"`
}

type likeDoc struct {
	User      string    `bson:"user"`
	CreatedAt time.Time `bson:"created_at"`
}

type commentDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	User      string        `bson:"user"`
	Name      string        `bson:"name"`
	Avatar    string        `bson:"avatar"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d *postDoc) toModel() *model.Post {
	return &model.Post{
		ID:        d.ID.Hex(),
		AuthorID:  d.User,
		Name:      d.Name,
		Avatar:    d.Avatar,
		Text:      d.Text,
		Likes:     likesToModel(d.Likes),
		Comments:  commentsToModel(d.Comments),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func likesToModel(docs []likeDoc) []model.Like {
	likes := make([]model.Like, 0, len(docs))
	for _, l := range docs {
		likes = append(likes, model.Like{UserID: l.User, CreatedAt: l.CreatedAt.UTC()})
	}
	return likes
}

func commentsToModel(docs []commentDoc) []model.Comment {
	comments := make([]model.Comment, 0, len(docs))
	for _, c := range docs {
		comments = append(comments, model.Comment{
			ID:        c.ID.Hex(),
			AuthorID:  c.User,
			Name:      c.Name,
			Avatar:    c.Avatar,
			Text:      c.Text,
			CreatedAt: c.CreatedAt.UTC(),
		})
	}
	return comments
}

// mongoTime truncates to what BSON datetimes can hold, so the value handed
// back to the caller equals the one read later.
func mongoTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Millisecond)
}

func (s *PostStore) Create(ctx context.Context, post *model.Post) error {
	doc := postDoc{
		ID:        bson.NewObjectID(),
		User:      post.AuthorID,
		Name:      post.Name,
		Avatar:    post.Avatar,
		Text:      post.Text,
		Likes:     []likeDoc{},
		Comments:  []commentDoc{},
		CreatedAt: mongoTime(post.CreatedAt),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongostore: creating post: %w", err)
	}

	post.ID = doc.ID.Hex()
	post.CreatedAt = doc.CreatedAt
	post.Likes = []model.Like{}
	post.Comments = []model.Comment{}
	return nil
}

func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperror.NotFound("post", id)
	}

	var doc postDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: getting post %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// List returns every post, newest first. ObjectIDs grow with insertion, so
// _id breaks created_at ties the same way the SQLite seq column does.
func (s *PostStore) List(ctx context.Context) ([]model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: listing posts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decoding posts: %w", err)
	}

	posts := make([]model.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, *docs[i].toModel())
	}
	return posts, nil
}

func (s *PostStore) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return apperror.NotFound("post", id)
	}

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongostore: deleting post %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

// AddLike pushes the like to the front of the array only if no element
// already carries this user. No match means either the post is gone or the
// user already likes it; a follow-up existence check tells them apart.
func (s *PostStore) AddLike(ctx context.Context, postID string, like model.Like) ([]model.Like, error) {
	oid, ok := objectID(postID)
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "likes.user", Value: bson.D{{Key: "$ne", Value: like.UserID}}},
	}
	update := bson.D{{Key: "$push", Value: bson.D{{Key: "likes", Value: bson.D{
		{Key: "$each", Value: []likeDoc{{User: like.UserID, CreatedAt: mongoTime(like.CreatedAt)}}},
		{Key: "$position", Value: 0},
	}}}}}

	doc, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("mongostore: liking post %s: %w", postID, err)
	}
	if doc == nil {
		if err := s.requirePost(ctx, oid, postID); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("Post already liked")
	}
	return likesToModel(doc.Likes), nil
}

func (s *PostStore) RemoveLike(ctx context.Context, postID, userID string) ([]model.Like, error) {
	oid, ok := objectID(postID)
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}

	filter := bson.D{{Key: "_id", Value: oid}, {Key: "likes.user", Value: userID}}
	update := bson.D{{Key: "$pull", Value: bson.D{{Key: "likes", Value: bson.D{{Key: "user", Value: userID}}}}}}

	doc, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("mongostore: unliking post %s: %w", postID, err)
	}
	if doc == nil {
		if err := s.requirePost(ctx, oid, postID); err != nil {
			return nil, err
		}
		return nil, apperror.PreconditionFailed("Post has not yet been liked")
	}
	return likesToModel(doc.Likes), nil
}

func (s *PostStore) AddComment(ctx context.Context, postID string, comment *model.Comment) ([]model.Comment, error) {
	oid, ok := objectID(postID)
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}

	c := commentDoc{
		ID:        bson.NewObjectID(),
		User:      comment.AuthorID,
		Name:      comment.Name,
		Avatar:    comment.Avatar,
		Text:      comment.Text,
		CreatedAt: mongoTime(comment.CreatedAt),
	}
	update := bson.D{{Key: "$push", Value: bson.D{{Key: "comments", Value: bson.D{
		{Key: "$each", Value: []commentDoc{c}},
		{Key: "$position", Value: 0},
	}}}}}

	doc, err := s.findOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return nil, fmt.Errorf("mongostore: commenting on post %s: %w", postID, err)
	}
	if doc == nil {
		return nil, apperror.NotFound("post", postID)
	}

	comment.ID = c.ID.Hex()
	comment.CreatedAt = c.CreatedAt
	return commentsToModel(doc.Comments), nil
}

// RemoveComment pulls exactly the element whose _id is commentID. The
// $elemMatch on both _id and user makes the author check part of the update.
func (s *PostStore) RemoveComment(ctx context.Context, postID, commentID, authorID string) ([]model.Comment, error) {
	oid, ok := objectID(postID)
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	cid, ok := objectID(commentID)
	if !ok {
		if err := s.requirePost(ctx, oid, postID); err != nil {
			return nil, err
		}
		return nil, apperror.NotFound("comment", commentID)
	}

	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "comments", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "_id", Value: cid},
			{Key: "user", Value: authorID},
		}}}},
	}
	update := bson.D{{Key: "$pull", Value: bson.D{{Key: "comments", Value: bson.D{{Key: "_id", Value: cid}}}}}}

	doc, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("mongostore: removing comment from post %s: %w", postID, err)
	}
	if doc == nil {
		if err := s.requirePost(ctx, oid, postID); err != nil {
			return nil, err
		}
		return nil, apperror.NotFound("comment", commentID)
	}
	return commentsToModel(doc.Comments), nil
}

// findOneAndUpdate applies update and returns the post after it. A nil doc
// with a nil error means the filter matched nothing.
func (s *PostStore) findOneAndUpdate(ctx context.Context, filter, update bson.D) (*postDoc, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PostStore) requirePost(ctx context.Context, oid bson.ObjectID, postID string) error {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongostore: looking up post %s: %w", postID, err)
	}
	if n == 0 {
		return apperror.NotFound("post", postID)
	}
	return nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/model"
	"github.com/sakif/devconnect/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

type UserStore struct {
	coll *mongo.Collection
}

type userDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	Name         string        `bson:"name"`
	Email        string        `bson:"email,omitempty"`
	Avatar       string        `bson:"avatar"`
	PasswordHash string        `bson:"password_hash,omitempty"`
	GitHubID     int64         `bson:"github_id,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		Avatar:       d.Avatar,
		PasswordHash: d.PasswordHash,
		GitHubID:     d.GitHubID,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a password account. The partial unique index on email
// reports a duplicate as a write error, returned as Conflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := mongoTime(time.Time{})
	doc := userDoc{
		ID:           bson.NewObjectID(),
		Name:         user.Name,
		Email:        normalizeEmail(user.Email),
		Avatar:       user.Avatar,
		PasswordHash: user.PasswordHash,
		GitHubID:     user.GitHubID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("User already exists")
		}
		return fmt.Errorf("mongostore: creating user: %w", err)
	}

	user.ID = doc.ID.Hex()
	user.Email = doc.Email
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Upsert is a single FindOneAndUpdate keyed by github_id. Profile fields are
// refreshed every time; the rest is only written on insert.
func (s *UserStore) Upsert(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return fmt.Errorf("mongostore: upserting user: GitHub ID is required")
	}

	now := mongoTime(time.Time{})
	setOnInsert := bson.D{
		{Key: "_id", Value: bson.NewObjectID()},
		{Key: "created_at", Value: now},
	}
	if email := normalizeEmail(user.Email); email != "" {
		setOnInsert = append(setOnInsert, bson.E{Key: "email", Value: email})
	}

	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "name", Value: user.Name},
			{Key: "avatar", Value: user.Avatar},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: setOnInsert},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "github_id", Value: user.GitHubID}}, update, opts).Decode(&doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("User already exists")
		}
		return fmt.Errorf("mongostore: upserting user (githubID=%d): %w", user.GitHubID, err)
	}

	*user = *doc.toModel()
	return nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}}, id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.NotFound("user", email)
	}
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}}, email)
}

func (s *UserStore) findOne(ctx context.Context, filter bson.D, key string) (*model.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("user", key)
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: getting user %s: %w", key, err)
	}
	return doc.toModel(), nil
}

// Package mongostore implements the repository interfaces on MongoDB.
//
// A post is one document with its likes and comments embedded as arrays, so
// every like/comment mutation is a single-document update. MongoDB applies
// those atomically; the conditional filters in post.go make "already liked"
// and "not liked yet" part of the same atomic step.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	postsCollection = "posts"
	usersCollection = "users"
)

// Store owns the client and hands out the repository implementations.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings the primary and ensures the indexes exist.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connecting: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: pinging primary: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Posts() *PostStore {
	return &PostStore{coll: s.db.Collection(postsCollection)}
}

func (s *Store) Users() *UserStore {
	return &UserStore{coll: s.db.Collection(usersCollection)}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, Options: options.Index().SetName("created_at_desc")},
	})
	if err != nil {
		return fmt.Errorf("mongostore: creating post indexes: %w", err)
	}

	_, err = s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("uniq_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "email", Value: bson.D{{Key: "$gt", Value: ""}}}}),
		},
		{
			Keys: bson.D{{Key: "github_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_github_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "github_id", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: creating user indexes: %w", err)
	}
	return nil
}

// objectID parses a hex id. ok is false for anything that is not a valid
// ObjectID; such an id can never match a stored document.
func objectID(id string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	return oid, err == nil
}

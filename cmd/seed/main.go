// Seed tool: fills the configured store with fake users, posts, likes and
// comments for local development.
//
// Writes go through the same services the API uses, so every seeded record
// passed the normal validation. All seeded users share one password.
//
//	go run ./cmd/seed -users 20 -posts 100
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/auth"
	"github.com/sakif/devconnect/internal/config"
	"github.com/sakif/devconnect/internal/server"
)

func main() {
	var (
		numUsers    int
		numPosts    int
		maxLikes    int
		maxComments int
		password    string
	)
	flag.IntVar(&numUsers, "users", 10, "number of users to register")
	flag.IntVar(&numPosts, "posts", 50, "number of posts to create")
	flag.IntVar(&maxLikes, "max-likes", 5, "maximum likes per post")
	flag.IntVar(&maxComments, "max-comments", 3, "maximum comments per post")
	flag.StringVar(&password, "password", "password123", "password for every seeded user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.Logger()

	ctx := context.Background()
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer srv.Close(ctx)

	start := time.Now()
	if err := seed(ctx, srv, logger, numUsers, numPosts, maxLikes, maxComments, password); err != nil {
		logger.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("seed complete", slog.Duration("took", time.Since(start).Truncate(time.Millisecond)))
}

func seed(ctx context.Context, srv *server.Server, logger *slog.Logger, numUsers, numPosts, maxLikes, maxComments int, password string) error {
	users := make([]auth.Identity, 0, numUsers)
	for len(users) < numUsers {
		result, err := srv.Accounts.Register(ctx, gofakeit.Name(), gofakeit.Email(), password)
		if errors.Is(err, apperror.ErrConflict) {
			continue // gofakeit repeated an email
		}
		if err != nil {
			return err
		}
		users = append(users, auth.Identity{UserID: result.User.ID})
		logger.Debug("user seeded", slog.String("email", result.User.Email))
	}
	if len(users) == 0 {
		return nil
	}

	pick := func() auth.Identity { return users[rand.IntN(len(users))] }

	for range numPosts {
		post, err := srv.Posts.Create(ctx, pick(), gofakeit.Paragraph(1, 3, 12, " "))
		if err != nil {
			return err
		}

		for _, i := range rand.Perm(len(users))[:rand.IntN(max(0, min(maxLikes, len(users)))+1)] {
			if _, err := srv.Posts.Like(ctx, users[i], post.ID); err != nil {
				return err
			}
		}

		for range rand.IntN(max(0, maxComments)+1) {
			if _, err := srv.Posts.AddComment(ctx, pick(), post.ID, gofakeit.Paragraph(1, 1, 10, " ")); err != nil {
				return err
			}
		}
	}

	logger.Info("seeded", slog.Int("users", len(users)), slog.Int("posts", numPosts))
	return nil
}

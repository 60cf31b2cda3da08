package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/model"
	"github.com/sakif/devconnect/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// In-memory implementations of the repository interfaces. Each method holds
// the mutex for its whole body, which gives the same per-post atomicity the
// real stores promise. Set the *Err fields to simulate store failures.

var (
	_ repository.PostRepository = (*fakePostRepo)(nil)
	_ repository.UserRepository = (*fakeUserRepo)(nil)
)

type fakePostRepo struct {
	mu     sync.Mutex
	posts  map[string]*model.Post
	seq    map[string]int
	nextID int

	getErr    error
	mutateErr error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		posts: make(map[string]*model.Post),
		seq:   make(map[string]int),
	}
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	c.Likes = append([]model.Like{}, p.Likes...)
	c.Comments = append([]model.Comment{}, p.Comments...)
	return &c
}

func (f *fakePostRepo) Create(_ context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.nextID++
	post.ID = fmt.Sprintf("post-%d", f.nextID)
	post.Likes = []model.Like{}
	post.Comments = []model.Comment{}
	f.posts[post.ID] = clonePost(post)
	f.seq[post.ID] = f.nextID
	return nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return clonePost(p), nil
}

func (f *fakePostRepo) List(_ context.Context) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([]model.Post, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, *clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return f.seq[out[i].ID] > f.seq[out[j].ID]
	})
	return out, nil
}

func (f *fakePostRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePostRepo) AddLike(_ context.Context, postID string, like model.Like) ([]model.Like, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	p, ok := f.posts[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	if p.HasLike(like.UserID) {
		return nil, apperror.Conflict("Post already liked")
	}
	p.Likes = append([]model.Like{like}, p.Likes...)
	return append([]model.Like{}, p.Likes...), nil
}

func (f *fakePostRepo) RemoveLike(_ context.Context, postID, userID string) ([]model.Like, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	p, ok := f.posts[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	kept := make([]model.Like, 0, len(p.Likes))
	for _, l := range p.Likes {
		if l.UserID != userID {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(p.Likes) {
		return nil, apperror.PreconditionFailed("Post has not yet been liked")
	}
	p.Likes = kept
	return append([]model.Like{}, kept...), nil
}

func (f *fakePostRepo) AddComment(_ context.Context, postID string, comment *model.Comment) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	p, ok := f.posts[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	f.nextID++
	comment.ID = fmt.Sprintf("comment-%d", f.nextID)
	p.Comments = append([]model.Comment{*comment}, p.Comments...)
	return append([]model.Comment{}, p.Comments...), nil
}

func (f *fakePostRepo) RemoveComment(_ context.Context, postID, commentID, authorID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	p, ok := f.posts[postID]
	if !ok {
		return nil, apperror.NotFound("post", postID)
	}
	for i, c := range p.Comments {
		if c.ID == commentID && c.AuthorID == authorID {
			p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
			return append([]model.Comment{}, p.Comments...), nil
		}
	}
	return nil, apperror.NotFound("comment", commentID)
}

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	byEmail map[string]*model.User
	byGHID  map[int64]*model.User
	nextID  int

	createErr  error
	upsertErr  error
	getByIDErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
		byGHID:  make(map[int64]*model.User),
	}
}

// addUser seeds a user directly, bypassing validation.
func (f *fakeUserRepo) addUser(name string) *model.User {
	u := &model.User{Name: name, Avatar: "https://avatars.example.com/" + name}
	if err := f.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	email := strings.ToLower(user.Email)
	if email != "" {
		if _, taken := f.byEmail[email]; taken {
			return apperror.Conflict("User already exists")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.Email = email
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	f.users[user.ID] = &stored
	if email != "" {
		f.byEmail[email] = &stored
	}
	return nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		existing.Name = user.Name
		existing.Avatar = user.Avatar
		existing.UpdatedAt = time.Now().UTC()
		*user = *existing
		return nil
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	f.byGHID[user.GitHubID] = &stored
	if user.Email != "" {
		f.byEmail[user.Email] = &stored
	}
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	c := *u
	return &c, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

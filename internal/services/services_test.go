package services_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shelfwise/apiserver/internal/db/dbtest"
	"github.com/shelfwise/apiserver/internal/services"
	"github.com/shelfwise/apiserver/internal/storage"
	"github.com/shelfwise/apiserver/internal/store"
	"github.com/shelfwise/apiserver/types"
)

type env struct {
	store   *store.Store
	users   *services.UserService
	books   *services.BookService
	ratings *services.RatingAggregator
	reviews *services.ReviewService
	library *services.LibraryService
	covers  *memCovers
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.New(dbtest.Open(t), store.DialectSQLite)
	covers := newMemCovers()
	ratings := services.NewRatingAggregator(st)
	return &env{
		store:   st,
		users:   services.NewUserService(st, services.BcryptHasher{Cost: bcrypt.MinCost}),
		books:   services.NewBookService(st, covers),
		ratings: ratings,
		reviews: services.NewReviewService(st, ratings, nil),
		library: services.NewLibraryService(st),
		covers:  covers,
	}
}

func (e *env) register(t *testing.T, name, email string) types.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), services.RegisterInput{
		Name:     name,
		Email:    email,
		Password: "pw",
	})
	require.NoError(t, err)
	return user
}

func (e *env) book(t *testing.T, title, author, genre string) types.Book {
	t.Helper()
	book, err := e.books.Create(context.Background(), services.CreateBookInput{
		Title:  title,
		Author: author,
		Genre:  genre,
	})
	require.NoError(t, err)
	return book
}

func ptr[T any](v T) *T { return &v }

// memCovers is an in-memory CoverStorage.
type memCovers struct {
	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

func newMemCovers() *memCovers {
	return &memCovers{objects: map[string]memObject{}}
}

func (m *memCovers) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (m *memCovers) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	info := storage.ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (m *memCovers) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memCovers) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, name, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockStore) PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, name, ttl)
	return args.String(0), args.Error(1)
}

func TestNewBlobName(t *testing.T) {
	name := NewBlobName("alice", "holiday photo.jpg")
	assert.True(t, strings.HasPrefix(name, "alice/"))
	assert.True(t, strings.HasSuffix(name, "_holiday photo.jpg"))

	name = NewBlobName("alice", `..\..\etc/passwd`)
	assert.Equal(t, 1, strings.Count(name, "/"))
	assert.True(t, strings.HasSuffix(name, "_passwd"))

	assert.True(t, strings.HasSuffix(NewBlobName("alice", ""), "_file"))
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/alice/1_a%20b.jpg",
		objectURL(s3BaseURL(S3Options{Bucket: "b", Region: "eu-west-1"}), "alice/1_a b.jpg"))
	assert.Equal(t, "http://localhost:4566/b/alice/x.png",
		objectURL(s3BaseURL(S3Options{Bucket: "b", Endpoint: "http://localhost:4566"}), "alice/x.png"))
	assert.Equal(t, "https://cdn.example.com/alice/x.png",
		objectURL(s3BaseURL(S3Options{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}), "alice/x.png"))
	assert.Equal(t, "https://minio.local/media/u/k.mp4",
		objectURL(minioBaseURL("minio.local", MinioOptions{Bucket: "media", UseSSL: true}), "u/k.mp4"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.Upload(ctx, "alice/1_a.jpg", "image/jpeg", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "memory://media/alice/1_a.jpg", u)
	assert.True(t, s.Exists("alice/1_a.jpg"))
	assert.Equal(t, "image/jpeg", s.ContentType("alice/1_a.jpg"))

	p, err := s.PresignURL(ctx, "alice/1_a.jpg", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, p, "expires=60")

	require.NoError(t, s.Delete(ctx, "alice/1_a.jpg"))
	assert.False(t, s.Exists("alice/1_a.jpg"))
	assert.ErrorIs(t, s.Delete(ctx, "alice/1_a.jpg"), ErrBlobNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestBreakerStoreTrips(t *testing.T) {
	ctx := context.Background()
	inner := &mockStore{}
	inner.On("Upload", ctx, "k", "image/png", []byte("x")).Return("", errors.New("connection refused"))

	b := NewBreakerStore(inner, 2, time.Minute)
	for i := 0; i < 2; i++ {
		_, err := b.Upload(ctx, "k", "image/png", []byte("x"))
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Upload(ctx, "k", "image/png", []byte("x"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	inner.AssertNumberOfCalls(t, "Upload", 2)
}

func TestBreakerStoreIgnoresNotFound(t *testing.T) {
	ctx := context.Background()
	inner := &mockStore{}
	inner.On("Delete", ctx, "gone").Return(ErrBlobNotFound)

	b := NewBreakerStore(inner, 1, time.Minute)
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Delete(ctx, "gone"), ErrBlobNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	b := NewBreakerStore(NewMemoryStore(), 3, time.Minute)
	u, err := b.Upload(ctx, "a/b.png", "image/png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "memory://media/a/b.png", u)

	p, err := b.PresignURL(ctx, "a/b.png", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, p)
	require.NoError(t, b.Delete(ctx, "a/b.png"))
}

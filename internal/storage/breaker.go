package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerStore trips after consecutive blob store failures so a dead
// backend fails requests fast instead of stacking up timeouts.
type BreakerStore struct {
	inner BlobStore
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerStore(inner BlobStore, maxFailures int, openFor time.Duration) *BreakerStore {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "blob-store",
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrBlobNotFound) || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerStore{inner: inner, cb: cb}
}

func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Upload(ctx, name, contentType, data)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *BreakerStore) Delete(ctx context.Context, name string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Delete(ctx, name)
	})
	return err
}

func (b *BreakerStore) PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.PresignURL(ctx, name, ttl)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

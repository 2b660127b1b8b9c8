package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	models "github.com/fathima-sithara/media-service/internal/media"
)

// MemoryRepo keeps records in process. Used for local runs without MongoDB
// and by tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[string]models.Media
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: map[string]models.Media{}}
}

func (r *MemoryRepo) Insert(_ context.Context, m *models.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[m.ID] = clone(m)
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id string) (*models.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.docs[id]
	if !ok {
		return nil, ErrMediaNotFound
	}
	out := clone(&m)
	return &out, nil
}

func (r *MemoryRepo) Update(_ context.Context, id, userID string, upd models.MediaUpdate, updatedAt time.Time) (*models.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok || m.UserID != userID {
		return nil, ErrMediaNotFound
	}
	if upd.Description != nil {
		d := *upd.Description
		m.Description = &d
	}
	if upd.Tags != nil {
		m.Tags = append([]string{}, (*upd.Tags)...)
	}
	m.UpdatedAt = updatedAt
	r.docs[id] = m
	out := clone(&m)
	return &out, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[id]
	if !ok || m.UserID != userID {
		return ErrMediaNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *MemoryRepo) List(_ context.Context, f models.ListFilter) ([]*models.Media, int64, error) {
	all := r.filter(f, func(*models.Media) bool { return true })
	return page(all, f), int64(len(all)), nil
}

func (r *MemoryRepo) Search(_ context.Context, f models.ListFilter) ([]*models.Media, int64, error) {
	all := r.filter(f, func(m *models.Media) bool { return matchesQuery(m, f.Query) })
	return page(all, f), int64(len(all)), nil
}

// page slices one filtered snapshot so items and total always agree.
func page(all []*models.Media, f models.ListFilter) []*models.Media {
	start := int(f.Skip())
	out := []*models.Media{}
	for i := start; i < len(all) && len(out) < f.PageSize; i++ {
		out = append(out, all[i])
	}
	return out
}

func (r *MemoryRepo) filter(f models.ListFilter, match func(*models.Media) bool) []*models.Media {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*models.Media
	for _, m := range r.docs {
		if m.UserID != f.UserID {
			continue
		}
		if f.MediaType != "" && m.MediaType != f.MediaType {
			continue
		}
		c := clone(&m)
		if match(&c) {
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].UploadedAt.Equal(all[j].UploadedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].UploadedAt.After(all[j].UploadedAt)
	})
	return all
}

func matchesQuery(m *models.Media, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(m.OriginalFileName), q) {
		return true
	}
	if m.Description != nil && strings.Contains(strings.ToLower(*m.Description), q) {
		return true
	}
	for _, t := range m.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func clone(m *models.Media) models.Media {
	c := *m
	if m.Tags != nil {
		c.Tags = append([]string{}, m.Tags...)
	}
	if m.Description != nil {
		d := *m.Description
		c.Description = &d
	}
	if m.ThumbnailURL != nil {
		u := *m.ThumbnailURL
		c.ThumbnailURL = &u
	}
	return c
}

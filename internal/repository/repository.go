package repository

import (
	"context"
	"time"

	models "github.com/fathima-sithara/media-service/internal/media"
	utils "github.com/fathima-sithara/media-service/internal/utis"
)

var ErrMediaNotFound = utils.NewNotFoundError("Media not found")

// MediaRepository is the document store for media records. Mutations are
// filtered by owner so a record that changed hands or vanished reports
// ErrMediaNotFound.
type MediaRepository interface {
	Insert(ctx context.Context, m *models.Media) error
	GetByID(ctx context.Context, id string) (*models.Media, error)
	Update(ctx context.Context, id, userID string, upd models.MediaUpdate, updatedAt time.Time) (*models.Media, error)
	Delete(ctx context.Context, id, userID string) error
	List(ctx context.Context, f models.ListFilter) ([]*models.Media, int64, error)
	Search(ctx context.Context, f models.ListFilter) ([]*models.Media, int64, error)
}

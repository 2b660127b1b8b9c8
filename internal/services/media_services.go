package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fathima-sithara/media-service/internal/events"
	models "github.com/fathima-sithara/media-service/internal/media"
	"github.com/fathima-sithara/media-service/internal/metrics"
	"github.com/fathima-sithara/media-service/internal/repository"
	"github.com/fathima-sithara/media-service/internal/storage"
	utils "github.com/fathima-sithara/media-service/internal/utis"

	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	publishTimeout = 2 * time.Second
)

var errInvalidTags = utils.NewValidationError("Invalid tags format. Must be a JSON array.", "")

// Cache stores presigned URLs between requests.
type Cache interface {
	Set(ctx context.Context, key string, val string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Options struct {
	MaxUploadBytes int64
	PresignTTL     time.Duration
	SignedURLTTL   time.Duration
}

type MediaService struct {
	repo   repository.MediaRepository
	store  storage.BlobStore
	cache  Cache
	events events.Publisher
	log    *zap.SugaredLogger
	opts   Options
	now    func() time.Time
}

type Option func(*MediaService)

func WithCache(c Cache) Option {
	return func(s *MediaService) { s.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *MediaService) { s.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *MediaService) { s.now = now }
}

func NewMediaService(repo repository.MediaRepository, store storage.BlobStore, log *zap.SugaredLogger, opts Options, options ...Option) *MediaService {
	s := &MediaService{
		repo:   repo,
		store:  store,
		events: events.NopPublisher{},
		log:    log,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for _, o := range options {
		o(s)
	}
	return s
}

type UploadInput struct {
	UserID      string
	FileName    string
	ContentType string
	Data        []byte
	Description *string
	Tags        string // raw JSON array from the form
}

type ListQuery struct {
	Page      int    `validate:"min=1"`
	PageSize  int    `validate:"min=1,max=100"`
	MediaType string `validate:"omitempty,oneof=image video"`
}

type SearchQuery struct {
	Query    string `validate:"required,min=1"`
	Page     int    `validate:"min=1"`
	PageSize int    `validate:"min=1,max=100"`
}

// VerifyOwnership returns the record only if userID owns it. A record owned
// by someone else is reported exactly like a missing one.
func (s *MediaService) VerifyOwnership(ctx context.Context, mediaID, userID string) (*models.Media, error) {
	m, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, repository.ErrMediaNotFound
	}
	return m, nil
}

func (s *MediaService) Upload(ctx context.Context, in UploadInput) (*models.Media, error) {
	ct := utils.ResolveContentType(in.ContentType, in.Data)
	kind, err := utils.ValidateFileType(in.FileName, ct)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateFileSize(int64(len(in.Data)), s.opts.MaxUploadBytes); err != nil {
		return nil, err
	}
	tags, err := ParseTags(in.Tags)
	if err != nil {
		return nil, err
	}
	meta := models.MediaUpdate{Description: in.Description}
	if tags != nil {
		meta.Tags = &tags
	}
	if err := utils.ValidateStruct(meta); err != nil {
		return nil, err
	}

	name := storage.NewBlobName(in.UserID, in.FileName)
	blobURL, err := s.store.Upload(ctx, name, ct, in.Data)
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	var (
		thumbName  string
		thumbURL   *string
		capturedAt *time.Time
	)
	if kind == models.TypeImage {
		capturedAt = captureTime(in.Data)
		thumbName, thumbURL = s.uploadThumbnail(ctx, in.UserID, in.FileName, in.Data)
	}

	now := s.now()
	m := &models.Media{
		ID:               utils.NewID(),
		UserID:           in.UserID,
		FileName:         name,
		OriginalFileName: in.FileName,
		MediaType:        kind,
		FileSize:         int64(len(in.Data)),
		MimeType:         ct,
		BlobURL:          blobURL,
		ThumbnailURL:     thumbURL,
		ThumbnailName:    thumbName,
		Description:      in.Description,
		Tags:             tags,
		CapturedAt:       capturedAt,
		UploadedAt:       now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		s.discardBlobs(ctx, name, thumbName)
		return nil, fmt.Errorf("save media: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues(kind).Inc()
	s.publish(ctx, events.MediaUploaded, m)
	return m, nil
}

// ParseTags decodes the multipart tags field. Malformed JSON, a non-array
// value and non-string elements are the same validation error.
func ParseTags(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, errInvalidTags
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, errInvalidTags
	}
	tags := make([]string, 0, len(arr))
	for _, e := range arr {
		t, ok := e.(string)
		if !ok {
			return nil, errInvalidTags
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (s *MediaService) uploadThumbnail(ctx context.Context, userID, fileName string, data []byte) (string, *string) {
	thumb, err := generateThumbnail(data)
	if err != nil {
		s.log.Warnw("thumbnail generation failed", "file", fileName, "error", err)
		metrics.SideFailures.WithLabelValues("thumbnail_generate").Inc()
		return "", nil
	}
	name := storage.NewBlobName(userID, "thumb_"+filepath.Base(fileName))
	u, err := s.store.Upload(ctx, name, "image/jpeg", thumb)
	if err != nil {
		s.log.Warnw("thumbnail upload failed", "blob", name, "error", err)
		metrics.SideFailures.WithLabelValues("thumbnail_upload").Inc()
		return "", nil
	}
	return name, &u
}

// discardBlobs removes blobs written for an upload whose record was never saved.
func (s *MediaService) discardBlobs(ctx context.Context, names ...string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if err := s.store.Delete(ctx, n); err != nil {
			s.log.Warnw("orphan blob cleanup failed", "blob", n, "error", err)
		}
	}
}

func (s *MediaService) Get(ctx context.Context, mediaID, userID string) (*models.Media, error) {
	return s.VerifyOwnership(ctx, mediaID, userID)
}

func (s *MediaService) Update(ctx context.Context, mediaID, userID string, upd models.MediaUpdate) (*models.Media, error) {
	if err := utils.ValidateStruct(upd); err != nil {
		return nil, err
	}
	cur, err := s.VerifyOwnership(ctx, mediaID, userID)
	if err != nil {
		return nil, err
	}
	updatedAt := s.now()
	if !updatedAt.After(cur.UpdatedAt) {
		updatedAt = cur.UpdatedAt.Add(time.Millisecond)
	}
	// the record may vanish between the guard and the write; the repository
	// reports that as not found and it is not retried
	m, err := s.repo.Update(ctx, mediaID, userID, upd, updatedAt)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.MediaUpdated, m)
	return m, nil
}

// Delete removes the primary blob, then the thumbnail, then the record. A
// failed primary delete aborts with the record intact; a failed thumbnail
// delete is only logged.
func (s *MediaService) Delete(ctx context.Context, mediaID, userID string) error {
	m, err := s.VerifyOwnership(ctx, mediaID, userID)
	if err != nil {
		return err
	}
	// an already missing primary blob counts as deleted
	if err := s.store.Delete(ctx, m.FileName); err != nil {
		if !errors.Is(err, storage.ErrBlobNotFound) {
			return fmt.Errorf("delete blob %s: %w", m.FileName, err)
		}
		s.log.Warnw("primary blob already missing", "media_id", m.ID, "blob", m.FileName)
	}
	if m.ThumbnailName != "" {
		if err := s.store.Delete(ctx, m.ThumbnailName); err != nil {
			s.log.Warnw("thumbnail deletion failed", "media_id", m.ID, "blob", m.ThumbnailName, "error", err)
			metrics.SideFailures.WithLabelValues("thumbnail_delete").Inc()
		}
	}
	if err := s.repo.Delete(ctx, mediaID, userID); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, signedURLKey(m.ID)); err != nil {
			s.log.Warnw("signed url cache eviction failed", "media_id", m.ID, "error", err)
		}
	}
	s.publish(ctx, events.MediaDeleted, m)
	return nil
}

func (s *MediaService) List(ctx context.Context, userID string, q ListQuery) (*models.MediaList, error) {
	if err := utils.ValidateStruct(q); err != nil {
		return nil, err
	}
	f := models.ListFilter{UserID: userID, MediaType: q.MediaType, Page: q.Page, PageSize: q.PageSize}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return &models.MediaList{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *MediaService) Search(ctx context.Context, userID string, q SearchQuery) (*models.MediaList, error) {
	if err := utils.ValidateStruct(q); err != nil {
		return nil, err
	}
	f := models.ListFilter{UserID: userID, Query: q.Query, Page: q.Page, PageSize: q.PageSize}
	items, total, err := s.repo.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search media: %w", err)
	}
	return &models.MediaList{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// SignedURL returns a time-limited download URL for the owner's blob.
func (s *MediaService) SignedURL(ctx context.Context, mediaID, userID string) (string, error) {
	m, err := s.VerifyOwnership(ctx, mediaID, userID)
	if err != nil {
		return "", err
	}
	key := signedURLKey(m.ID)
	if s.cache != nil {
		if u, err := s.cache.Get(ctx, key); err == nil && u != "" {
			return u, nil
		}
	}
	u, err := s.store.PresignURL(ctx, m.FileName, s.opts.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	if s.cache != nil && s.opts.SignedURLTTL > 0 {
		if err := s.cache.Set(ctx, key, u, s.opts.SignedURLTTL); err != nil {
			s.log.Warnw("signed url cache write failed", "media_id", m.ID, "error", err)
		}
	}
	return u, nil
}

func signedURLKey(id string) string {
	return "media:signed:" + id
}

func (s *MediaService) publish(ctx context.Context, typ string, m *models.Media) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	ev := events.MediaEvent{
		Type:       typ,
		MediaID:    m.ID,
		UserID:     m.UserID,
		MediaType:  m.MediaType,
		FileName:   m.FileName,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(pctx, ev); err != nil {
		s.log.Warnw("event publish failed", "event", typ, "media_id", m.ID, "error", err)
		metrics.SideFailures.WithLabelValues("event_publish").Inc()
	}
}

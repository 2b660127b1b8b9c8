package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	models "github.com/fathima-sithara/media-service/internal/media"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MediaRepo struct {
	col *mongo.Collection
}

func NewMediaRepo(col *mongo.Collection) *MediaRepo {
	return &MediaRepo{col: col}
}

// Connect dials MongoDB and pings it with exponential backoff until
// maxElapsed runs out.
func Connect(ctx context.Context, uri string, maxElapsed time.Duration) (*mongo.Client, error) {
	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return mc.Ping(pctx, nil)
	}
	if err := backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return mc, nil
}

func (r *MediaRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "uploaded_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "media_type", Value: 1}}},
	})
	return err
}

func (r *MediaRepo) Insert(ctx context.Context, m *models.Media) error {
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MediaRepo) GetByID(ctx context.Context, id string) (*models.Media, error) {
	var m models.Media
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepo) Update(ctx context.Context, id, userID string, upd models.MediaUpdate, updatedAt time.Time) (*models.Media, error) {
	var m models.Media
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.col.FindOneAndUpdate(ctx, ownedFilter(id, userID), bson.M{"$set": updateSet(upd, updatedAt)}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.col.DeleteOne(ctx, ownedFilter(id, userID))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (r *MediaRepo) List(ctx context.Context, f models.ListFilter) ([]*models.Media, int64, error) {
	return r.page(ctx, listFilter(f), f)
}

func (r *MediaRepo) Search(ctx context.Context, f models.ListFilter) ([]*models.Media, int64, error) {
	return r.page(ctx, searchFilter(f), f)
}

func (r *MediaRepo) page(ctx context.Context, filter bson.M, f models.ListFilter) ([]*models.Media, int64, error) {
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(f.Skip()).
		SetLimit(int64(f.PageSize))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Media, 0, f.PageSize)
	for cur.Next(ctx) {
		var m models.Media
		if err := cur.Decode(&m); err != nil {
			return nil, 0, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func ownedFilter(id, userID string) bson.M {
	return bson.M{"_id": id, "user_id": userID}
}

func updateSet(upd models.MediaUpdate, updatedAt time.Time) bson.M {
	set := bson.M{"updated_at": updatedAt}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Tags != nil {
		set["tags"] = *upd.Tags
	}
	return set
}

func listFilter(f models.ListFilter) bson.M {
	filter := bson.M{"user_id": f.UserID}
	if f.MediaType != "" {
		filter["media_type"] = f.MediaType
	}
	return filter
}

func searchFilter(f models.ListFilter) bson.M {
	re := ciRegex(f.Query)
	filter := listFilter(f)
	filter["$or"] = bson.A{
		bson.M{"original_file_name": re},
		bson.M{"description": re},
		bson.M{"tags": re},
	}
	return filter
}

func ciRegex(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

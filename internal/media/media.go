package models

import "time"

const (
	TypeImage = "image"
	TypeVideo = "video"
)

// Media is the metadata record of one uploaded file.
type Media struct {
	ID               string     `bson:"_id" json:"id"`
	UserID           string     `bson:"user_id" json:"userId"`
	FileName         string     `bson:"file_name" json:"fileName"` // blob name
	OriginalFileName string     `bson:"original_file_name" json:"originalFileName"`
	MediaType        string     `bson:"media_type" json:"mediaType"` // image|video
	FileSize         int64      `bson:"file_size" json:"fileSize"`
	MimeType         string     `bson:"mime_type" json:"mimeType"`
	BlobURL          string     `bson:"blob_url" json:"blobUrl"`
	ThumbnailURL     *string    `bson:"thumbnail_url,omitempty" json:"thumbnailUrl"`
	ThumbnailName    string     `bson:"thumbnail_name,omitempty" json:"-"`
	Description      *string    `bson:"description,omitempty" json:"description"`
	Tags             []string   `bson:"tags,omitempty" json:"tags"`
	CapturedAt       *time.Time `bson:"captured_at,omitempty" json:"capturedAt,omitempty"`
	UploadedAt       time.Time  `bson:"uploaded_at" json:"uploadedAt"`
	UpdatedAt        time.Time  `bson:"updated_at" json:"updatedAt"`
}

// MediaUpdate carries a partial metadata update. Nil fields are left untouched.
type MediaUpdate struct {
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=50,dive,max=100"`
}

type MediaList struct {
	Items    []*Media `json:"items"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// ListFilter scopes a paginated query to one owner.
type ListFilter struct {
	UserID    string
	MediaType string
	Query     string
	Page      int
	PageSize  int
}

func (f ListFilter) Skip() int64 {
	if f.Page < 1 {
		return 0
	}
	return int64(f.Page-1) * int64(f.PageSize)
}

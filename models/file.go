package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File is the metadata record of one uploaded object. The binary content
// lives in the object store at ObjectKey inside ObjectContainer; the key
// encodes the owner and a generated file name, never the folder, so moving
// a file between folders touches only FolderID.
type File struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	OwnerID         primitive.ObjectID   `bson:"owner_id" json:"owner_id"`
	FolderID        *primitive.ObjectID  `bson:"folder_id,omitempty" json:"folder_id,omitempty"` // nil means root
	FileName        string               `bson:"file_name" json:"file_name"`                     // generated storage name
	OriginalName    string               `bson:"original_name" json:"original_name"`
	FileSize        int64                `bson:"file_size" json:"file_size"`
	MimeType        string               `bson:"mime_type" json:"mime_type"`
	ObjectKey       string               `bson:"object_key" json:"object_key"` // globally unique
	ObjectContainer string               `bson:"object_container" json:"object_container"`
	Tags            []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	Metadata        map[string]string    `bson:"metadata,omitempty" json:"metadata,omitempty"`
	SharedWith      []primitive.ObjectID `bson:"shared_with,omitempty" json:"shared_with,omitempty"` // direct per-user grants
	IsDeleted       bool                 `bson:"is_deleted" json:"is_deleted"`
	DeletedAt       *time.Time           `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	UploadedAt      time.Time            `bson:"uploaded_at" json:"uploaded_at"`
	LastModified    time.Time            `bson:"last_modified" json:"last_modified"`
}

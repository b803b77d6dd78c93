// Package repository is the metadata-store capability: persistence of folder,
// file, and share records with filter+sort+pagination queries. Services depend
// only on the interfaces here; the Mongo implementations live alongside.
//
// Lookups return (nil, nil) when nothing matches — services translate that
// into their own typed not-found/denial outcomes.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/models"
)

// Sort fields accepted by FileRepository.List.
const (
	SortByUploadedAt = "uploadedAt"
	SortByFileName   = "fileName"
	SortByFileSize   = "fileSize"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// FileFilter narrows and pages a file listing. When FolderID is set the
// listing is restricted to that folder; RootOnly restricts to files outside
// any folder; with neither, all of the owner's files match.
type FileFilter struct {
	FolderID    *primitive.ObjectID
	RootOnly    bool
	MimePattern string // prefix match, e.g. "image/"
	Limit       int64
	Offset      int64
	SortBy      string
	SortOrder   string
}

// FolderRepository persists folder tree nodes. All reads exclude soft-deleted
// nodes and are scoped to one owner.
type FolderRepository interface {
	Insert(ctx context.Context, folder *models.Folder) error
	FindByID(ctx context.Context, ownerID, folderID primitive.ObjectID) (*models.Folder, error)
	FindByName(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error)
	ListChildren(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error)
	UpdateName(ctx context.Context, folderID primitive.ObjectID, name string, now time.Time) error
	MarkDeleted(ctx context.Context, folderIDs []primitive.ObjectID, now time.Time) error
}

// FileRepository persists file metadata records.
type FileRepository interface {
	Insert(ctx context.Context, file *models.File) error
	FindOwned(ctx context.Context, ownerID, fileID primitive.ObjectID) (*models.File, error)
	// FindOwnedAny matches soft-deleted records too (permanent-delete path).
	FindOwnedAny(ctx context.Context, ownerID, fileID primitive.ObjectID) (*models.File, error)
	FindByID(ctx context.Context, fileID primitive.ObjectID) (*models.File, error)
	// List returns one page plus the unpaged matching count and byte-size sum.
	List(ctx context.Context, ownerID primitive.ObjectID, filter FileFilter) ([]models.File, int64, int64, error)
	ListByFolder(ctx context.Context, ownerID primitive.ObjectID, folderID *primitive.ObjectID, limit int) ([]models.File, error)
	SetFolder(ctx context.Context, fileID primitive.ObjectID, folderID *primitive.ObjectID, now time.Time) error
	ReplaceTags(ctx context.Context, fileID primitive.ObjectID, tags []string, now time.Time) error
	ReplaceMetadata(ctx context.Context, fileID primitive.ObjectID, metadata map[string]string, now time.Time) error
	AddSharedWith(ctx context.Context, fileID, principalID primitive.ObjectID) error
	RemoveSharedWith(ctx context.Context, fileID, principalID primitive.ObjectID) error
	MarkDeleted(ctx context.Context, fileID primitive.ObjectID, now time.Time) error
	Delete(ctx context.Context, fileID primitive.ObjectID) error
	ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.File, error)
}

// ShareRepository persists capability grants. FindByToken returns only
// non-revoked grants; expiry and item checks stay in the service.
type ShareRepository interface {
	Insert(ctx context.Context, share *models.Share) error
	FindByToken(ctx context.Context, token string) (*models.Share, error)
	FindOwned(ctx context.Context, ownerID, shareID primitive.ObjectID) (*models.Share, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Share, error)
	UpdateGrant(ctx context.Context, share *models.Share) error
	// Revoke reports whether this call flipped the grant to revoked.
	Revoke(ctx context.Context, ownerID, shareID primitive.ObjectID, now time.Time) (bool, error)
}

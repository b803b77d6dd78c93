package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Item types a share grant can point at.
const (
	ItemTypeFile   = "file"
	ItemTypeFolder = "folder"
)

// Permissions a grant can carry. Each action checks its own permission;
// edit does not imply view or download.
const (
	PermissionView     = "view"
	PermissionDownload = "download"
	PermissionEdit     = "edit"
)

// Share is a capability over one file or one folder subtree. The token is
// the sole lookup key for anonymous access; whoever holds it gets exactly
// the permissions listed, optionally gated by AllowedEmails and ExpiresAt.
type Share struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID       primitive.ObjectID `bson:"owner_id" json:"owner_id"` // issuer, must own the item
	ItemType      string             `bson:"item_type" json:"item_type"`
	ItemID        primitive.ObjectID `bson:"item_id" json:"item_id"`
	Token         string             `bson:"token" json:"token"` // unguessable, unique
	Permissions   []string           `bson:"permissions" json:"permissions"`
	AllowedEmails []string           `bson:"allowed_emails,omitempty" json:"allowed_emails,omitempty"`
	ExpiresAt     *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	IsRevoked     bool               `bson:"is_revoked" json:"is_revoked"`
	RevokedAt     *time.Time         `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// HasPermission reports whether the grant carries the given permission.
func (s *Share) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsExpired reports whether the grant is inert at the given instant.
func (s *Share) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

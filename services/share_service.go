package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/apperrors"
	"nimbusdrive/logger"
	"nimbusdrive/models"
	"nimbusdrive/repository"
	"nimbusdrive/utils"
)

const (
	// shareTokenBytes of entropy per token; hex-encoded on the wire.
	shareTokenBytes = 32

	// maxShareDownloadFiles bounds how many presigned URLs a single folder
	// share download may emit.
	maxShareDownloadFiles = 1000

	// maxShareWalkVisits bounds the folder walk behind a share download.
	maxShareWalkVisits = 10000
)

// CreateShareInput describes a new grant. Permissions default to view-only,
// AllowedEmails empty means anyone holding the token.
type CreateShareInput struct {
	ItemType      string
	ItemID        primitive.ObjectID
	Permissions   []string
	AllowedEmails []string
	ExpiresAt     *time.Time
}

// UpdateShareInput carries the mutable fields of a grant; nil means keep.
type UpdateShareInput struct {
	Permissions   *[]string
	AllowedEmails *[]string
	ExpiresAt     *time.Time
	ClearExpiry   bool
}

// SharedFileDownload is one presigned URL inside a share download.
type SharedFileDownload struct {
	FileID       string `json:"file_id"`
	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
	DownloadURL  string `json:"download_url"`
}

// ShareDownload is the result of redeeming a token for download: one entry
// for a file share, up to maxShareDownloadFiles entries for a folder share.
type ShareDownload struct {
	ItemType  string               `json:"item_type"`
	Files     []SharedFileDownload `json:"files"`
	Truncated bool                 `json:"truncated"`
	ExpiresIn int                  `json:"expires_in"`
}

// SharedItemView is the metadata-only view of a shared item.
type SharedItemView struct {
	ItemType    string          `json:"item_type"`
	File        *models.File    `json:"file,omitempty"`
	Folder      *models.Folder  `json:"folder,omitempty"`
	Files       []models.File   `json:"files,omitempty"`
	Subfolders  []models.Folder `json:"subfolders,omitempty"`
	Permissions []string        `json:"permissions"`
}

// ShareService issues, evaluates, and revokes capability tokens for files
// and folders. A token is the whole credential: anyone holding a live token
// (and on the allowlist, if one is set) gets the granted permissions.
type ShareService struct {
	shareRepo  repository.ShareRepository
	fileRepo   repository.FileRepository
	folderRepo repository.FolderRepository
	storage    ObjectStorage
	baseURL    string
	log        *logger.Logger
}

func NewShareService(shareRepo repository.ShareRepository, fileRepo repository.FileRepository, folderRepo repository.FolderRepository, storage ObjectStorage, publicBaseURL string, log *logger.Logger) *ShareService {
	return &ShareService{
		shareRepo:  shareRepo,
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		storage:    storage,
		baseURL:    strings.TrimRight(publicBaseURL, "/"),
		log:        log.With("service", "share"),
	}
}

// CreateShare creates a grant for an item the caller owns. A non-owned or
// missing item both come back as ACCESS_DENIED, so callers can't discover
// which item IDs exist.
func (s *ShareService) CreateShare(ctx context.Context, ownerID primitive.ObjectID, input CreateShareInput) (*models.Share, string, error) {
	if input.ItemType != models.ItemTypeFile && input.ItemType != models.ItemTypeFolder {
		return nil, "", apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidInput, "item type must be file or folder")
	}

	owned, err := s.ownsItem(ctx, ownerID, input.ItemType, input.ItemID)
	if err != nil {
		return nil, "", err
	}
	if !owned {
		return nil, "", apperrors.New(apperrors.KindAccessDenied, apperrors.CodeAccessDenied, "access denied")
	}

	perms := normalizePermissions(input.Permissions)

	emails := make([]string, 0, len(input.AllowedEmails))
	for _, email := range input.AllowedEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if err := utils.ValidateEmail(email); err != nil {
			return nil, "", apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "invalid allowed email", err)
		}
		emails = append(emails, email)
	}

	now := time.Now()
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, "", apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidExpiry, "expiry must be in the future")
	}

	token, err := generateShareToken()
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to generate token", err)
	}

	share := &models.Share{
		ID:            primitive.NewObjectID(),
		OwnerID:       ownerID,
		ItemType:      input.ItemType,
		ItemID:        input.ItemID,
		Token:         token,
		Permissions:   perms,
		AllowedEmails: emails,
		ExpiresAt:     input.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.shareRepo.Insert(ctx, share); err != nil {
		return nil, "", apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to persist share", err)
	}

	return share, s.AccessURL(token), nil
}

// AccessURL renders the public redemption URL for a token.
func (s *ShareService) AccessURL(token string) string {
	return fmt.Sprintf("%s/share/%s", s.baseURL, token)
}

// ResolveToken returns the live grant behind a token. Unknown, revoked and
// expired tokens are indistinguishable to the caller: all three are
// SHARE_NOT_FOUND.
func (s *ShareService) ResolveToken(ctx context.Context, token string) (*models.Share, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
	}
	share, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to resolve token", err)
	}
	if share == nil || share.IsRevoked || share.IsExpired(time.Now()) {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
	}
	return share, nil
}

// Authorize checks a resolved grant against a recipient and an action. The
// allowlist is evaluated first: a live token held by someone off the list is
// UNAUTHORIZED_RECIPIENT, not a missing share. Each action then requires its
// own permission bit; no bit implies another.
func (s *ShareService) Authorize(share *models.Share, recipientEmail, action string) error {
	if len(share.AllowedEmails) > 0 {
		email := strings.ToLower(strings.TrimSpace(recipientEmail))
		allowed := false
		for _, e := range share.AllowedEmails {
			if e == email && email != "" {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperrors.New(apperrors.KindAccessDenied, apperrors.CodeUnauthorizedRecipient, "recipient not authorized for this share")
		}
	}

	if !share.HasPermission(action) {
		return apperrors.New(apperrors.KindAccessDenied, apperrors.CodeAccessDenied, "share does not grant "+action)
	}
	return nil
}

// ViewViaToken redeems a token for item metadata. Requires the view bit.
func (s *ShareService) ViewViaToken(ctx context.Context, token, recipientEmail string) (*SharedItemView, error) {
	share, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(share, recipientEmail, models.PermissionView); err != nil {
		return nil, err
	}

	view := &SharedItemView{ItemType: share.ItemType, Permissions: share.Permissions}

	switch share.ItemType {
	case models.ItemTypeFile:
		file, err := s.fileRepo.FindOwned(ctx, share.OwnerID, share.ItemID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load shared file", err)
		}
		if file == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
		}
		view.File = file
	case models.ItemTypeFolder:
		folder, err := s.folderRepo.FindByID(ctx, share.OwnerID, share.ItemID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load shared folder", err)
		}
		if folder == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
		}
		view.Folder = folder

		folderID := folder.ID
		files, err := s.fileRepo.ListByFolder(ctx, share.OwnerID, &folderID, maxShareDownloadFiles)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to list shared folder files", err)
		}
		subfolders, err := s.folderRepo.ListChildren(ctx, share.OwnerID, &folderID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to list shared subfolders", err)
		}
		view.Files = files
		view.Subfolders = subfolders
	}

	return view, nil
}

// DownloadViaToken redeems a token for presigned download URLs. Requires the
// download bit. A file share yields exactly one URL; a folder share walks
// the subtree breadth-first up to the visit and file caps, skipping files
// whose URL can't be signed rather than failing the batch.
func (s *ShareService) DownloadViaToken(ctx context.Context, token, recipientEmail string, expirationSeconds int) (*ShareDownload, error) {
	share, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(share, recipientEmail, models.PermissionDownload); err != nil {
		return nil, err
	}

	ttl := clampTTL(expirationSeconds)
	result := &ShareDownload{ItemType: share.ItemType, ExpiresIn: ttl}

	if share.ItemType == models.ItemTypeFile {
		file, err := s.fileRepo.FindOwned(ctx, share.OwnerID, share.ItemID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load shared file", err)
		}
		if file == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
		}
		entry, err := s.presignEntry(ctx, file, ttl)
		if err != nil {
			return nil, err
		}
		result.Files = []SharedFileDownload{*entry}
		return result, nil
	}

	root, err := s.folderRepo.FindByID(ctx, share.OwnerID, share.ItemID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load shared folder", err)
	}
	if root == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
	}

	queue := []primitive.ObjectID{root.ID}
	visits := 0
	for len(queue) > 0 && len(result.Files) < maxShareDownloadFiles {
		folderID := queue[0]
		queue = queue[1:]

		visits++
		if visits > maxShareWalkVisits {
			result.Truncated = true
			break
		}

		files, err := s.fileRepo.ListByFolder(ctx, share.OwnerID, &folderID, maxShareDownloadFiles-len(result.Files))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to list shared folder files", err)
		}
		for i := range files {
			if len(result.Files) >= maxShareDownloadFiles {
				result.Truncated = true
				break
			}
			entry, err := s.presignEntry(ctx, &files[i], ttl)
			if err != nil {
				// One unsignable file should not sink the batch.
				s.log.ErrorWith("skipping file in share download", err, map[string]interface{}{
					"file_id": files[i].ID.Hex(),
				})
				continue
			}
			result.Files = append(result.Files, *entry)
		}

		children, err := s.folderRepo.ListChildren(ctx, share.OwnerID, &folderID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to list shared subfolders", err)
		}
		for _, child := range children {
			queue = append(queue, child.ID)
		}
	}
	if len(queue) > 0 && len(result.Files) >= maxShareDownloadFiles {
		result.Truncated = true
	}

	return result, nil
}

func (s *ShareService) presignEntry(ctx context.Context, file *models.File, ttl int) (*SharedFileDownload, error) {
	url, err := s.storage.PresignGet(ctx, file.ObjectContainer, file.ObjectKey, time.Duration(ttl)*time.Second)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to presign download", err)
	}
	return &SharedFileDownload{
		FileID:       file.ID.Hex(),
		OriginalName: file.OriginalName,
		FileSize:     file.FileSize,
		MimeType:     file.MimeType,
		DownloadURL:  url,
	}, nil
}

// GetShare fetches one grant the caller owns. Owner-scoped lookups report a
// true not-found; there is nothing to hide from the owner.
func (s *ShareService) GetShare(ctx context.Context, ownerID, shareID primitive.ObjectID) (*models.Share, error) {
	share, err := s.shareRepo.FindOwned(ctx, ownerID, shareID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load share", err)
	}
	if share == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
	}
	return share, nil
}

// ListShares returns every grant the caller has issued, live or not.
func (s *ShareService) ListShares(ctx context.Context, ownerID primitive.ObjectID) ([]models.Share, error) {
	shares, err := s.shareRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to list shares", err)
	}
	return shares, nil
}

// UpdateShare rewrites the mutable fields of a grant the caller owns. The
// token itself never changes; rotate by revoking and issuing a new share.
func (s *ShareService) UpdateShare(ctx context.Context, ownerID, shareID primitive.ObjectID, input UpdateShareInput) (*models.Share, error) {
	share, err := s.shareRepo.FindOwned(ctx, ownerID, shareID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load share", err)
	}
	if share == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
	}
	if share.IsRevoked {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeShareNotFound, "share not found")
	}

	now := time.Now()
	if input.Permissions != nil {
		share.Permissions = normalizePermissions(*input.Permissions)
	}
	if input.AllowedEmails != nil {
		emails := make([]string, 0, len(*input.AllowedEmails))
		for _, email := range *input.AllowedEmails {
			email = strings.ToLower(strings.TrimSpace(email))
			if email == "" {
				continue
			}
			if err := utils.ValidateEmail(email); err != nil {
				return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "invalid allowed email", err)
			}
			emails = append(emails, email)
		}
		share.AllowedEmails = emails
	}
	if input.ClearExpiry {
		share.ExpiresAt = nil
	} else if input.ExpiresAt != nil {
		if !input.ExpiresAt.After(now) {
			return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidExpiry, "expiry must be in the future")
		}
		share.ExpiresAt = input.ExpiresAt
	}
	share.UpdatedAt = now

	if err := s.shareRepo.UpdateGrant(ctx, share); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to update share", err)
	}
	return share, nil
}

// RevokeShare permanently disables a grant. Only the first call reports the
// state change; revoking an already revoked, unknown, or foreign share is a
// quiet no-op.
func (s *ShareService) RevokeShare(ctx context.Context, ownerID, shareID primitive.ObjectID) (bool, error) {
	share, err := s.shareRepo.FindOwned(ctx, ownerID, shareID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load share", err)
	}
	if share == nil {
		return false, nil
	}

	changed, err := s.shareRepo.Revoke(ctx, ownerID, shareID, time.Now())
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to revoke share", err)
	}
	return changed, nil
}

func (s *ShareService) ownsItem(ctx context.Context, ownerID primitive.ObjectID, itemType string, itemID primitive.ObjectID) (bool, error) {
	switch itemType {
	case models.ItemTypeFile:
		file, err := s.fileRepo.FindOwned(ctx, ownerID, itemID)
		if err != nil {
			return false, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
		}
		return file != nil, nil
	case models.ItemTypeFolder:
		folder, err := s.folderRepo.FindByID(ctx, ownerID, itemID)
		if err != nil {
			return false, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load folder", err)
		}
		return folder != nil, nil
	}
	return false, nil
}

// normalizePermissions lowercases, de-duplicates and filters the requested
// permission set. Unrecognized entries are dropped; an empty or fully
// unrecognized request defaults to view-only.
func normalizePermissions(perms []string) []string {
	seen := make(map[string]bool, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.ToLower(strings.TrimSpace(p))
		switch p {
		case models.PermissionView, models.PermissionDownload, models.PermissionEdit:
		default:
			continue
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{models.PermissionView}
	}
	return out
}

func generateShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

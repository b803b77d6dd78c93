package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/apperrors"
	"nimbusdrive/logger"
	"nimbusdrive/models"
	"nimbusdrive/repository"
	"nimbusdrive/utils"
)

const (
	// Presigned URL lifetime bounds, in seconds.
	minPresignTTL = 300
	maxPresignTTL = 86400

	// Page size bounds for listings.
	minListLimit = 1
	maxListLimit = 100
)

// ListFilesInput narrows and pages a file listing.
type ListFilesInput struct {
	FolderID    *primitive.ObjectID
	RootOnly    bool
	MimePattern string
	Limit       int64
	Offset      int64
	SortBy      string
	SortOrder   string
}

// FileListing is one page of results plus totals over the whole match set.
type FileListing struct {
	Files     []models.File `json:"files"`
	Total     int64         `json:"total"`
	TotalSize int64         `json:"total_size"`
	Limit     int64         `json:"limit"`
	Offset    int64         `json:"offset"`
}

// UploadTicket is a reserved presigned-PUT slot. The record is only created
// once ConfirmUpload verifies the object landed.
type UploadTicket struct {
	FileName  string `json:"file_name"`
	ObjectKey string `json:"object_key"`
	UploadURL string `json:"upload_url"`
	ExpiresIn int    `json:"expires_in"`
}

// FileService owns per-file metadata: upload, listing, moves, direct grants,
// and access-checked presigned URL issuance.
type FileService struct {
	fileRepo   repository.FileRepository
	folderRepo repository.FolderRepository
	storage    ObjectStorage
	container  string
	log        *logger.Logger
}

func NewFileService(fileRepo repository.FileRepository, folderRepo repository.FolderRepository, storage ObjectStorage, container string, log *logger.Logger) *FileService {
	return &FileService{
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		storage:    storage,
		container:  container,
		log:        log.With("service", "file"),
	}
}

// Upload streams the object to storage and then creates the metadata record.
// If the record insert fails the freshly stored object is removed, so the
// two stores never disagree about a new file.
func (s *FileService) Upload(ctx context.Context, ownerID primitive.ObjectID, originalName string, body io.Reader, size int64, mimeType string, folderID *primitive.ObjectID) (*models.File, error) {
	if err := utils.ValidateFileName(originalName); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "invalid file name", err)
	}
	if folderID != nil {
		folder, err := s.folderRepo.FindByID(ctx, ownerID, *folderID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load folder", err)
		}
		if folder == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "folder not found")
		}
	}

	fileName := generateFileName(originalName)
	objectKey := FileObjectKey(ownerID.Hex(), fileName)

	if err := s.storage.Put(ctx, s.container, objectKey, body, size, mimeType); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to store object", err)
	}

	now := time.Now()
	file := &models.File{
		ID:              primitive.NewObjectID(),
		OwnerID:         ownerID,
		FolderID:        folderID,
		FileName:        fileName,
		OriginalName:    originalName,
		FileSize:        size,
		MimeType:        mimeType,
		ObjectKey:       objectKey,
		ObjectContainer: s.container,
		UploadedAt:      now,
		LastModified:    now,
	}

	if err := s.fileRepo.Insert(ctx, file); err != nil {
		if delErr := s.storage.Delete(ctx, s.container, objectKey); delErr != nil {
			s.log.ConsistencyRisk("failed to remove object after record insert failure", delErr, map[string]interface{}{
				"object_key": objectKey,
			})
		}
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to persist file record", err)
	}

	return file, nil
}

// IssuePresignedUpload reserves an object key and returns a presigned PUT
// URL for it. No record exists until ConfirmUpload.
func (s *FileService) IssuePresignedUpload(ctx context.Context, ownerID primitive.ObjectID, originalName string, folderID *primitive.ObjectID, expirationSeconds int) (*UploadTicket, error) {
	if err := utils.ValidateFileName(originalName); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "invalid file name", err)
	}
	if folderID != nil {
		folder, err := s.folderRepo.FindByID(ctx, ownerID, *folderID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load folder", err)
		}
		if folder == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "folder not found")
		}
	}

	ttl := clampTTL(expirationSeconds)
	fileName := generateFileName(originalName)
	objectKey := FileObjectKey(ownerID.Hex(), fileName)

	url, err := s.storage.PresignPut(ctx, s.container, objectKey, time.Duration(ttl)*time.Second)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to presign upload", err)
	}

	return &UploadTicket{
		FileName:  fileName,
		ObjectKey: objectKey,
		UploadURL: url,
		ExpiresIn: ttl,
	}, nil
}

// ConfirmUpload creates the metadata record for a previously reserved key.
// The object must already exist; its stat supplies the authoritative size.
func (s *FileService) ConfirmUpload(ctx context.Context, ownerID primitive.ObjectID, fileName, originalName, mimeType string, folderID *primitive.ObjectID) (*models.File, error) {
	objectKey := FileObjectKey(ownerID.Hex(), fileName)

	stat, err := s.storage.Head(ctx, s.container, objectKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to stat uploaded object", err)
	}
	if stat == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "no object was uploaded for this ticket")
	}

	if mimeType == "" {
		mimeType = stat.ContentType
	}

	now := time.Now()
	file := &models.File{
		ID:              primitive.NewObjectID(),
		OwnerID:         ownerID,
		FolderID:        folderID,
		FileName:        fileName,
		OriginalName:    originalName,
		FileSize:        stat.Size,
		MimeType:        mimeType,
		ObjectKey:       objectKey,
		ObjectContainer: s.container,
		UploadedAt:      now,
		LastModified:    now,
	}

	if err := s.fileRepo.Insert(ctx, file); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to persist file record", err)
	}
	return file, nil
}

// GetFile fetches one non-deleted file owned by ownerID.
func (s *FileService) GetFile(ctx context.Context, ownerID, fileID primitive.ObjectID) (*models.File, error) {
	file, err := s.fileRepo.FindOwned(ctx, ownerID, fileID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "file not found")
	}
	return file, nil
}

// ListFiles returns a page of the owner's files plus the total count and
// byte-size sum of the whole match set. Limit is clamped to [1,100], offset
// to >=0; unknown sort fields fall back to upload time.
func (s *FileService) ListFiles(ctx context.Context, ownerID primitive.ObjectID, input ListFilesInput) (*FileListing, error) {
	limit := input.Limit
	if limit < minListLimit {
		limit = minListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	sortBy := input.SortBy
	switch sortBy {
	case repository.SortByUploadedAt, repository.SortByFileName, repository.SortByFileSize:
	default:
		sortBy = repository.SortByUploadedAt
	}
	sortOrder := input.SortOrder
	if sortOrder != repository.SortAsc {
		sortOrder = repository.SortDesc
	}

	files, total, totalSize, err := s.fileRepo.List(ctx, ownerID, repository.FileFilter{
		FolderID:    input.FolderID,
		RootOnly:    input.RootOnly,
		MimePattern: input.MimePattern,
		Limit:       limit,
		Offset:      offset,
		SortBy:      sortBy,
		SortOrder:   sortOrder,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to list files", err)
	}

	return &FileListing{
		Files:     files,
		Total:     total,
		TotalSize: totalSize,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

// MoveFile reassigns the folder association. The object key never changes on
// a move: it encodes the owner, not the folder.
func (s *FileService) MoveFile(ctx context.Context, ownerID, fileID primitive.ObjectID, destFolderID *primitive.ObjectID) (*models.File, error) {
	file, err := s.fileRepo.FindOwned(ctx, ownerID, fileID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "file not found")
	}

	if destFolderID != nil {
		dest, err := s.folderRepo.FindByID(ctx, ownerID, *destFolderID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load destination folder", err)
		}
		if dest == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeDestinationNotFound, "destination folder not found")
		}
	}

	now := time.Now()
	if err := s.fileRepo.SetFolder(ctx, fileID, destFolderID, now); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to move file", err)
	}

	file.FolderID = destFolderID
	file.LastModified = now
	return file, nil
}

// CanAccess is the narrow per-file check used outside the token-share path:
// the owner and directly granted principals may act, nobody else. The action
// parameter is carried for parity with the share evaluator; both paths get
// full access here.
func (s *FileService) CanAccess(ctx context.Context, principalID, fileID primitive.ObjectID, action string) (bool, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return false, nil
	}
	if file.OwnerID == principalID {
		return true, nil
	}
	for _, p := range file.SharedWith {
		if p == principalID {
			return true, nil
		}
	}
	return false, nil
}

// IssuePresignedDownload returns a time-bounded download URL for the file.
// The caller must pass CanAccess; a missing object key is a storage failure,
// reported distinctly from denial.
func (s *FileService) IssuePresignedDownload(ctx context.Context, fileID, principalID primitive.ObjectID, expirationSeconds int) (string, error) {
	ok, err := s.CanAccess(ctx, principalID, fileID, models.PermissionDownload)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.New(apperrors.KindAccessDenied, apperrors.CodeAccessDenied, "access denied")
	}

	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil || file == nil {
		return "", apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to resolve object key", err)
	}

	ttl := clampTTL(expirationSeconds)
	url, err := s.storage.PresignGet(ctx, file.ObjectContainer, file.ObjectKey, time.Duration(ttl)*time.Second)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to presign download", err)
	}
	return url, nil
}

// UpdateMetadata replaces tags and/or the metadata map. Tags are trimmed and
// empty entries dropped; the metadata map replaces the stored one wholesale.
func (s *FileService) UpdateMetadata(ctx context.Context, ownerID, fileID primitive.ObjectID, tags *[]string, metadata *map[string]string) (*models.File, error) {
	file, err := s.fileRepo.FindOwned(ctx, ownerID, fileID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "file not found")
	}

	now := time.Now()
	if tags != nil {
		cleaned := make([]string, 0, len(*tags))
		for _, tag := range *tags {
			if t := strings.TrimSpace(tag); t != "" {
				cleaned = append(cleaned, t)
			}
		}
		if err := s.fileRepo.ReplaceTags(ctx, fileID, cleaned, now); err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to update tags", err)
		}
		file.Tags = cleaned
	}
	if metadata != nil {
		if err := s.fileRepo.ReplaceMetadata(ctx, fileID, *metadata, now); err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to update metadata", err)
		}
		file.Metadata = *metadata
	}
	file.LastModified = now
	return file, nil
}

// ShareWithUser adds a direct per-user grant outside the token mechanism.
func (s *FileService) ShareWithUser(ctx context.Context, ownerID, fileID, principalID primitive.ObjectID) error {
	file, err := s.fileRepo.FindOwned(ctx, ownerID, fileID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "file not found")
	}
	if err := s.fileRepo.AddSharedWith(ctx, fileID, principalID); err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to grant access", err)
	}
	return nil
}

// UnshareWithUser removes a direct per-user grant.
func (s *FileService) UnshareWithUser(ctx context.Context, ownerID, fileID, principalID primitive.ObjectID) error {
	file, err := s.fileRepo.FindOwned(ctx, ownerID, fileID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "file not found")
	}
	if err := s.fileRepo.RemoveSharedWith(ctx, fileID, principalID); err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to revoke access", err)
	}
	return nil
}

// SoftDelete marks the record deleted without touching the object.
func (s *FileService) SoftDelete(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	file, err := s.fileRepo.FindOwned(ctx, ownerID, fileID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "file not found")
	}
	if err := s.fileRepo.MarkDeleted(ctx, fileID, time.Now()); err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to delete file", err)
	}
	return nil
}

// PermanentDelete removes the object and then the record. If the record
// delete fails after the object is gone, the record is soft-deleted instead
// so it can't point at a missing object, and the degraded path is logged as
// a consistency risk.
func (s *FileService) PermanentDelete(ctx context.Context, ownerID, fileID primitive.ObjectID) error {
	file, err := s.fileRepo.FindOwnedAny(ctx, ownerID, fileID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load file", err)
	}
	if file == nil {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeFileNotFound, "file not found")
	}
	return s.purge(ctx, file)
}

// Purge is the record+object removal used by the trash cleanup job. The file
// must already be loaded; ownership checks are the caller's business.
func (s *FileService) Purge(ctx context.Context, file *models.File) error {
	return s.purge(ctx, file)
}

func (s *FileService) purge(ctx context.Context, file *models.File) error {
	if err := s.storage.Delete(ctx, file.ObjectContainer, file.ObjectKey); err != nil {
		return apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to delete object", err)
	}

	if err := s.fileRepo.Delete(ctx, file.ID); err != nil {
		if fallbackErr := s.fileRepo.MarkDeleted(ctx, file.ID, time.Now()); fallbackErr != nil {
			s.log.ConsistencyRisk("record delete and soft-delete fallback both failed", fallbackErr, map[string]interface{}{
				"file_id":    file.ID.Hex(),
				"object_key": file.ObjectKey,
			})
			return apperrors.Wrap(apperrors.KindConsistencyRisk, apperrors.CodeConsistencyRisk,
				"object removed but record could not be deleted or soft-deleted", err)
		}
		s.log.ConsistencyRisk("record delete failed after object removal, fell back to soft delete", err, map[string]interface{}{
			"file_id":    file.ID.Hex(),
			"object_key": file.ObjectKey,
		})
		return apperrors.Wrap(apperrors.KindConsistencyRisk, apperrors.CodeConsistencyRisk,
			"object removed, record soft-deleted as fallback", err)
	}
	return nil
}

func generateFileName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s%s", uuid.New().String(), ext)
}

func clampTTL(seconds int) int {
	if seconds < minPresignTTL {
		return minPresignTTL
	}
	if seconds > maxPresignTTL {
		return maxPresignTTL
	}
	return seconds
}

package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/apperrors"
	"nimbusdrive/logger"
	"nimbusdrive/models"
	"nimbusdrive/repository"
	"nimbusdrive/utils"
)

const (
	// maxPathDepth bounds the parent-link walk; exceeding it means the tree
	// is corrupt (cycle or runaway nesting), not that the path is empty.
	maxPathDepth = 256

	// maxCascadeVisits bounds the breadth-first cascade over descendants.
	maxCascadeVisits = 10000
)

// FolderService keeps the logical folder tree and the object-store prefix
// layout in step. The object store is mutated before the database on every
// structural change: it is the harder store to roll back, so its success
// gates the cheaper metadata write.
type FolderService struct {
	folderRepo repository.FolderRepository
	storage    ObjectStorage
	container  string
	log        *logger.Logger
}

func NewFolderService(folderRepo repository.FolderRepository, storage ObjectStorage, container string, log *logger.Logger) *FolderService {
	return &FolderService{
		folderRepo: folderRepo,
		storage:    storage,
		container:  container,
		log:        log.With("service", "folder"),
	}
}

// ListChildren returns the immediate non-deleted children of parentID, or of
// the root when parentID is nil.
func (s *FolderService) ListChildren(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error) {
	folders, err := s.folderRepo.ListChildren(ctx, ownerID, parentID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to list folders", err)
	}
	return folders, nil
}

// GetFolder fetches one non-deleted folder owned by ownerID.
func (s *FolderService) GetFolder(ctx context.Context, ownerID, folderID primitive.ObjectID) (*models.Folder, error) {
	folder, err := s.folderRepo.FindByID(ctx, ownerID, folderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load folder", err)
	}
	if folder == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "folder not found")
	}
	return folder, nil
}

// PathSegments returns the ancestor names of folderID ordered root-first,
// excluding the folder itself. A nil folderID yields an empty path. The walk
// is bounded; hitting the bound is a consistency error, never an empty result.
func (s *FolderService) PathSegments(ctx context.Context, ownerID primitive.ObjectID, folderID *primitive.ObjectID) ([]string, error) {
	segments := []string{}
	if folderID == nil {
		return segments, nil
	}

	folder, err := s.folderRepo.FindByID(ctx, ownerID, *folderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to walk folder path", err)
	}
	if folder == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "folder not found")
	}

	current := folder.ParentID
	for hops := 0; current != nil; hops++ {
		if hops >= maxPathDepth {
			return nil, apperrors.New(apperrors.KindConsistencyRisk, apperrors.CodeTraversalLimit,
				fmt.Sprintf("folder path exceeds %d levels, tree is corrupt", maxPathDepth))
		}

		node, err := s.folderRepo.FindByID(ctx, ownerID, *current)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to walk folder path", err)
		}
		if node == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "folder not found")
		}

		segments = append([]string{node.Name}, segments...)
		current = node.ParentID
	}

	return segments, nil
}

// CreateFolder creates a folder under parentID (root when nil). Sibling names
// are unique, case-sensitive, among non-deleted nodes. The object-store
// prefix marker is written first; the row is only persisted once the marker
// exists, so a storage failure leaves no partial state.
func (s *FolderService) CreateFolder(ctx context.Context, ownerID primitive.ObjectID, name string, parentID *primitive.ObjectID) (*models.Folder, error) {
	if err := utils.ValidateFolderName(name); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "invalid folder name", err)
	}

	var parentSegments []string
	if parentID != nil {
		parent, err := s.folderRepo.FindByID(ctx, ownerID, *parentID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load parent folder", err)
		}
		if parent == nil {
			return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "parent folder not found")
		}
		parentSegments, err = s.PathSegments(ctx, ownerID, parentID)
		if err != nil {
			return nil, err
		}
		parentSegments = append(parentSegments, parent.Name)
	}

	existing, err := s.folderRepo.FindByName(ctx, ownerID, parentID, name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to check sibling names", err)
	}
	if existing != nil {
		return nil, apperrors.New(apperrors.KindConflict, apperrors.CodeFolderExists,
			fmt.Sprintf("folder %q already exists here", name))
	}

	prefix := FolderPrefix(ownerID.Hex(), append(parentSegments, name))
	if err := s.storage.EnsurePrefix(ctx, s.container, prefix); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to create folder prefix", err)
	}

	now := time.Now()
	folder := &models.Folder{
		ID:        primitive.NewObjectID(),
		Name:      name,
		OwnerID:   ownerID,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.folderRepo.Insert(ctx, folder); err != nil {
		// The row never existed; remove the orphan marker best-effort.
		if delErr := s.storage.Delete(ctx, s.container, prefix); delErr != nil {
			s.log.ErrorWith("failed to remove orphan folder marker", delErr, map[string]interface{}{
				"prefix": prefix,
			})
		}
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to persist folder", err)
	}

	return folder, nil
}

// RenameFolder renames a folder and rewrites every object key under its
// prefix. Renaming to the current name is a no-op. If the metadata update
// fails after the subtree was moved, the move is rolled back; a failed
// rollback is surfaced as a consistency risk, distinct from ordinary failure.
func (s *FolderService) RenameFolder(ctx context.Context, ownerID, folderID primitive.ObjectID, newName string) (*models.Folder, error) {
	folder, err := s.folderRepo.FindByID(ctx, ownerID, folderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load folder", err)
	}
	if folder == nil {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "folder not found")
	}
	if newName == folder.Name {
		return folder, nil
	}

	if err := utils.ValidateFolderName(newName); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidInput, "invalid folder name", err)
	}

	sibling, err := s.folderRepo.FindByName(ctx, ownerID, folder.ParentID, newName)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to check sibling names", err)
	}
	if sibling != nil {
		return nil, apperrors.New(apperrors.KindConflict, apperrors.CodeFolderExists,
			fmt.Sprintf("folder %q already exists here", newName))
	}

	ancestors, err := s.PathSegments(ctx, ownerID, &folderID)
	if err != nil {
		return nil, err
	}
	owner := ownerID.Hex()
	oldPrefix := FolderPrefix(owner, append(append([]string{}, ancestors...), folder.Name))
	newPrefix := FolderPrefix(owner, append(append([]string{}, ancestors...), newName))

	if err := s.moveSubtree(ctx, oldPrefix, newPrefix); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to rename folder objects", err)
	}

	now := time.Now()
	if err := s.folderRepo.UpdateName(ctx, folderID, newName, now); err != nil {
		// Compensate: move the subtree back so the two stores agree again.
		if rollbackErr := s.moveSubtree(ctx, newPrefix, oldPrefix); rollbackErr != nil {
			s.log.ConsistencyRisk("folder rename rollback failed, stores diverged", rollbackErr, map[string]interface{}{
				"folder_id":  folderID.Hex(),
				"old_prefix": oldPrefix,
				"new_prefix": newPrefix,
			})
			return nil, apperrors.Wrap(apperrors.KindConsistencyRisk, apperrors.CodeConsistencyRisk,
				"rename failed and rollback failed, manual intervention needed", err)
		}
		return nil, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to persist folder rename", err)
	}

	folder.Name = newName
	folder.UpdatedAt = now
	return folder, nil
}

// moveSubtree copies every object under srcPrefix to dstPrefix, recreates
// the folder marker, then deletes the originals.
func (s *FolderService) moveSubtree(ctx context.Context, srcPrefix, dstPrefix string) error {
	listing, err := s.storage.ListUnderPrefix(ctx, s.container, srcPrefix, ListOptions{Recursive: true})
	if err != nil {
		return err
	}

	copied := make([]string, 0, len(listing.Objects))
	for _, obj := range listing.Objects {
		dstKey := dstPrefix + obj.Key[len(srcPrefix):]
		if err := s.storage.Copy(ctx, s.container, obj.Key, dstKey); err != nil {
			// Undo partial copies so a retry starts clean.
			for _, key := range copied {
				if delErr := s.storage.Delete(ctx, s.container, key); delErr != nil {
					s.log.ErrorWith("failed to remove partially copied object", delErr, map[string]interface{}{"key": key})
				}
			}
			return err
		}
		copied = append(copied, dstKey)
	}

	if err := s.storage.EnsurePrefix(ctx, s.container, dstPrefix); err != nil {
		return err
	}

	for _, obj := range listing.Objects {
		if err := s.storage.Delete(ctx, s.container, obj.Key); err != nil {
			return err
		}
	}
	return s.storage.Delete(ctx, s.container, srcPrefix)
}

// SoftDeleteSubtree soft-deletes a folder and every descendant folder,
// returning the number of nodes marked. The mirrored object-store subtree is
// removed first. Files inside the subtree are left to the trash job; this
// operation only touches folder nodes.
func (s *FolderService) SoftDeleteSubtree(ctx context.Context, ownerID, folderID primitive.ObjectID) (int, error) {
	folder, err := s.folderRepo.FindByID(ctx, ownerID, folderID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to load folder", err)
	}
	if folder == nil {
		return 0, apperrors.New(apperrors.KindNotFound, apperrors.CodeFolderNotFound, "folder not found")
	}

	ancestors, err := s.PathSegments(ctx, ownerID, &folderID)
	if err != nil {
		return 0, err
	}
	prefix := FolderPrefix(ownerID.Hex(), append(ancestors, folder.Name))

	if err := s.deletePrefixTree(ctx, prefix); err != nil {
		return 0, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to delete folder objects", err)
	}

	// Breadth-first collection of the subtree, bounded against corrupt data.
	visited := []primitive.ObjectID{folderID}
	queue := []primitive.ObjectID{folderID}
	capped := false

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		children, err := s.folderRepo.ListChildren(ctx, ownerID, &next)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to walk subtree", err)
		}
		for _, child := range children {
			if len(visited) >= maxCascadeVisits {
				capped = true
				queue = nil
				break
			}
			visited = append(visited, child.ID)
			queue = append(queue, child.ID)
		}
	}

	if err := s.folderRepo.MarkDeleted(ctx, visited, time.Now()); err != nil {
		return 0, apperrors.Wrap(apperrors.KindStorageFailed, apperrors.CodeStorageFailed, "failed to mark subtree deleted", err)
	}

	if capped {
		return len(visited), apperrors.New(apperrors.KindConsistencyRisk, apperrors.CodeTraversalLimit,
			fmt.Sprintf("subtree delete stopped after %d nodes, remainder untouched", maxCascadeVisits))
	}
	return len(visited), nil
}

func (s *FolderService) deletePrefixTree(ctx context.Context, prefix string) error {
	listing, err := s.storage.ListUnderPrefix(ctx, s.container, prefix, ListOptions{Recursive: true})
	if err != nil {
		return err
	}
	for _, obj := range listing.Objects {
		if err := s.storage.Delete(ctx, s.container, obj.Key); err != nil {
			return err
		}
	}
	return s.storage.Delete(ctx, s.container, prefix)
}

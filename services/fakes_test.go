package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/models"
	"nimbusdrive/repository"
)

// In-memory doubles for the repository and object-store capabilities. Each
// fake keeps per-method error hooks so tests can force failures at specific
// points.

type memFolderRepo struct {
	mu      sync.Mutex
	folders map[primitive.ObjectID]*models.Folder

	insertErr error
	updateErr error
}

func newMemFolderRepo() *memFolderRepo {
	return &memFolderRepo{folders: make(map[primitive.ObjectID]*models.Folder)}
}

func (r *memFolderRepo) Insert(ctx context.Context, folder *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	cp := *folder
	r.folders[folder.ID] = &cp
	return nil
}

func (r *memFolderRepo) FindByID(ctx context.Context, ownerID, folderID primitive.ObjectID) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.folders[folderID]
	if !ok || f.OwnerID != ownerID || f.IsDeleted {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memFolderRepo) FindByName(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.folders {
		if f.OwnerID != ownerID || f.IsDeleted || f.Name != name {
			continue
		}
		if sameParent(f.ParentID, parentID) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memFolderRepo) ListChildren(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, f := range r.folders {
		if f.OwnerID == ownerID && !f.IsDeleted && sameParent(f.ParentID, parentID) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memFolderRepo) UpdateName(ctx context.Context, folderID primitive.ObjectID, name string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	f, ok := r.folders[folderID]
	if !ok {
		return errors.New("folder not found")
	}
	f.Name = name
	f.UpdatedAt = now
	return nil
}

func (r *memFolderRepo) MarkDeleted(ctx context.Context, folderIDs []primitive.ObjectID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range folderIDs {
		if f, ok := r.folders[id]; ok {
			f.IsDeleted = true
			f.DeletedAt = &now
		}
	}
	return nil
}

func sameParent(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type memFileRepo struct {
	mu    sync.Mutex
	files map[primitive.ObjectID]*models.File

	insertErr error
	deleteErr error
	markErr   error
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{files: make(map[primitive.ObjectID]*models.File)}
}

func (r *memFileRepo) Insert(ctx context.Context, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	cp := *file
	r.files[file.ID] = &cp
	return nil
}

func (r *memFileRepo) FindOwned(ctx context.Context, ownerID, fileID primitive.ObjectID) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok || f.OwnerID != ownerID || f.IsDeleted {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) FindOwnedAny(ctx context.Context, ownerID, fileID primitive.ObjectID) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok || f.OwnerID != ownerID {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) FindByID(ctx context.Context, fileID primitive.ObjectID) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok || f.IsDeleted {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memFileRepo) List(ctx context.Context, ownerID primitive.ObjectID, filter repository.FileFilter) ([]models.File, int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []models.File
	var totalSize int64
	for _, f := range r.files {
		if f.OwnerID != ownerID || f.IsDeleted {
			continue
		}
		if filter.FolderID != nil && !sameParent(f.FolderID, filter.FolderID) {
			continue
		}
		if filter.RootOnly && f.FolderID != nil {
			continue
		}
		if filter.MimePattern != "" && !strings.HasPrefix(f.MimeType, filter.MimePattern) {
			continue
		}
		matched = append(matched, *f)
		totalSize += f.FileSize
	}

	asc := filter.SortOrder == repository.SortAsc
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case repository.SortByFileName:
			less = matched[i].FileName < matched[j].FileName
		case repository.SortByFileSize:
			less = matched[i].FileSize < matched[j].FileSize
		default:
			less = matched[i].UploadedAt.Before(matched[j].UploadedAt)
		}
		if asc {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, totalSize, nil
}

func (r *memFileRepo) ListByFolder(ctx context.Context, ownerID primitive.ObjectID, folderID *primitive.ObjectID, limit int) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.files {
		if f.OwnerID != ownerID || f.IsDeleted || !sameParent(f.FolderID, folderID) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memFileRepo) SetFolder(ctx context.Context, fileID primitive.ObjectID, folderID *primitive.ObjectID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return errors.New("file not found")
	}
	f.FolderID = folderID
	f.LastModified = now
	return nil
}

func (r *memFileRepo) ReplaceTags(ctx context.Context, fileID primitive.ObjectID, tags []string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return errors.New("file not found")
	}
	f.Tags = tags
	f.LastModified = now
	return nil
}

func (r *memFileRepo) ReplaceMetadata(ctx context.Context, fileID primitive.ObjectID, metadata map[string]string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return errors.New("file not found")
	}
	f.Metadata = metadata
	f.LastModified = now
	return nil
}

func (r *memFileRepo) AddSharedWith(ctx context.Context, fileID, principalID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return errors.New("file not found")
	}
	for _, p := range f.SharedWith {
		if p == principalID {
			return nil
		}
	}
	f.SharedWith = append(f.SharedWith, principalID)
	return nil
}

func (r *memFileRepo) RemoveSharedWith(ctx context.Context, fileID, principalID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fileID]
	if !ok {
		return errors.New("file not found")
	}
	kept := f.SharedWith[:0]
	for _, p := range f.SharedWith {
		if p != principalID {
			kept = append(kept, p)
		}
	}
	f.SharedWith = kept
	return nil
}

func (r *memFileRepo) MarkDeleted(ctx context.Context, fileID primitive.ObjectID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	f, ok := r.files[fileID]
	if !ok {
		return errors.New("file not found")
	}
	f.IsDeleted = true
	f.DeletedAt = &now
	return nil
}

func (r *memFileRepo) Delete(ctx context.Context, fileID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.files, fileID)
	return nil
}

func (r *memFileRepo) ListDeletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.File
	for _, f := range r.files {
		if f.IsDeleted && f.DeletedAt != nil && f.DeletedAt.Before(cutoff) {
			out = append(out, *f)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type memShareRepo struct {
	mu     sync.Mutex
	shares map[primitive.ObjectID]*models.Share

	insertErr error
}

func newMemShareRepo() *memShareRepo {
	return &memShareRepo{shares: make(map[primitive.ObjectID]*models.Share)}
}

func (r *memShareRepo) Insert(ctx context.Context, share *models.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	cp := *share
	r.shares[share.ID] = &cp
	return nil
}

func (r *memShareRepo) FindByToken(ctx context.Context, token string) (*models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sh := range r.shares {
		if sh.Token == token && !sh.IsRevoked {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memShareRepo) FindOwned(ctx context.Context, ownerID, shareID primitive.ObjectID) (*models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shares[shareID]
	if !ok || sh.OwnerID != ownerID {
		return nil, nil
	}
	cp := *sh
	return &cp, nil
}

func (r *memShareRepo) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Share
	for _, sh := range r.shares {
		if sh.OwnerID == ownerID {
			out = append(out, *sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memShareRepo) UpdateGrant(ctx context.Context, share *models.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shares[share.ID]; !ok {
		return errors.New("share not found")
	}
	cp := *share
	r.shares[share.ID] = &cp
	return nil
}

func (r *memShareRepo) Revoke(ctx context.Context, ownerID, shareID primitive.ObjectID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shares[shareID]
	if !ok || sh.OwnerID != ownerID || sh.IsRevoked {
		return false, nil
	}
	sh.IsRevoked = true
	sh.RevokedAt = &now
	sh.UpdatedAt = now
	return true, nil
}

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string]memObject // key: container + "/" + object key

	putErr     error
	copyErr    error
	deleteErr  error
	presignErr error

	// presignFailKeys forces PresignGet failures for specific object keys.
	presignFailKeys map[string]bool
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string]memObject)}
}

func (s *memObjectStore) objKey(container, key string) string {
	return container + "/" + key
}

func (s *memObjectStore) Put(ctx context.Context, container, key string, body io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	var data []byte
	if body != nil {
		var err error
		data, err = io.ReadAll(body)
		if err != nil {
			return err
		}
	}
	s.objects[s.objKey(container, key)] = memObject{data: data, contentType: contentType, modified: time.Now()}
	return nil
}

func (s *memObjectStore) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[s.objKey(container, key)]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *memObjectStore) Head(ctx context.Context, container, key string) (*ObjectStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[s.objKey(container, key)]
	if !ok {
		return nil, nil
	}
	return &ObjectStat{Size: int64(len(obj.data)), LastModified: obj.modified, ContentType: obj.contentType}, nil
}

func (s *memObjectStore) Delete(ctx context.Context, container, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, s.objKey(container, key))
	return nil
}

func (s *memObjectStore) Copy(ctx context.Context, container, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.copyErr != nil {
		return s.copyErr
	}
	obj, ok := s.objects[s.objKey(container, srcKey)]
	if !ok {
		return errors.New("source object not found")
	}
	s.objects[s.objKey(container, dstKey)] = obj
	return nil
}

func (s *memObjectStore) ListUnderPrefix(ctx context.Context, container, prefix string, opts ListOptions) (*ObjectListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.objKey(container, prefix)
	listing := &ObjectListing{}
	seenPrefixes := make(map[string]bool)

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.TrimPrefix(k, container+"/")
		rest := strings.TrimPrefix(key, prefix)
		if !opts.Recursive && rest != "" {
			if idx := strings.Index(rest, "/"); idx >= 0 {
				child := prefix + rest[:idx+1]
				if !seenPrefixes[child] {
					seenPrefixes[child] = true
					listing.ChildPrefixes = append(listing.ChildPrefixes, child)
				}
				continue
			}
		}
		obj := s.objects[k]
		listing.Objects = append(listing.Objects, ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
	}
	return listing, nil
}

func (s *memObjectStore) PresignGet(ctx context.Context, container, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presignErr != nil {
		return "", s.presignErr
	}
	if s.presignFailKeys[key] {
		return "", errors.New("presign failed")
	}
	return "https://signed.example.com/" + container + "/" + key, nil
}

func (s *memObjectStore) PresignPut(ctx context.Context, container, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://signed.example.com/upload/" + container + "/" + key, nil
}

func (s *memObjectStore) EnsurePrefix(ctx context.Context, container, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[s.objKey(container, prefix)] = memObject{contentType: "application/x-directory", modified: time.Now()}
	return nil
}

// keysWithPrefix reports the stored object keys under a container prefix,
// sorted, for assertions on subtree moves.
func (s *memObjectStore) keysWithPrefix(container, prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	full := s.objKey(container, prefix)
	for k := range s.objects {
		if strings.HasPrefix(k, full) {
			out = append(out, strings.TrimPrefix(k, container+"/"))
		}
	}
	sort.Strings(out)
	return out
}

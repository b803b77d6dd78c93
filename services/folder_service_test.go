package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/apperrors"
	"nimbusdrive/logger"
)

const testContainer = "drive-test"

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

func newFolderFixture() (*FolderService, *memFolderRepo, *memObjectStore) {
	folders := newMemFolderRepo()
	store := newMemObjectStore()
	svc := NewFolderService(folders, store, testContainer, testLogger())
	return svc, folders, store
}

func TestCreateFolderRoot(t *testing.T) {
	svc, _, store := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	folder, err := svc.CreateFolder(ctx, owner, "Reports", nil)
	require.NoError(t, err)
	assert.Equal(t, "Reports", folder.Name)
	assert.Nil(t, folder.ParentID)

	stat, err := store.Head(ctx, testContainer, "folders/"+owner.Hex()+"/Reports/")
	require.NoError(t, err)
	assert.NotNil(t, stat, "prefix marker should exist")
}

func TestCreateFolderNested(t *testing.T) {
	svc, _, store := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	parent, err := svc.CreateFolder(ctx, owner, "a", nil)
	require.NoError(t, err)
	child, err := svc.CreateFolder(ctx, owner, "b", &parent.ID)
	require.NoError(t, err)
	grand, err := svc.CreateFolder(ctx, owner, "c", &child.ID)
	require.NoError(t, err)

	stat, err := store.Head(ctx, testContainer, "folders/"+owner.Hex()+"/a/b/c/")
	require.NoError(t, err)
	assert.NotNil(t, stat)

	// The path excludes the folder itself.
	segments, err := svc.PathSegments(ctx, owner, &grand.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, segments)
}

func TestCreateFolderSiblingConflict(t *testing.T) {
	svc, _, _ := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	_, err := svc.CreateFolder(ctx, owner, "docs", nil)
	require.NoError(t, err)

	_, err = svc.CreateFolder(ctx, owner, "docs", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, apperrors.CodeFolderExists, apperrors.CodeOf(err))
}

func TestCreateFolderSameNameDifferentParents(t *testing.T) {
	svc, _, _ := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	a, err := svc.CreateFolder(ctx, owner, "a", nil)
	require.NoError(t, err)
	b, err := svc.CreateFolder(ctx, owner, "b", nil)
	require.NoError(t, err)

	_, err = svc.CreateFolder(ctx, owner, "shared", &a.ID)
	require.NoError(t, err)
	_, err = svc.CreateFolder(ctx, owner, "shared", &b.ID)
	assert.NoError(t, err, "same name under different parents must not conflict")
}

func TestCreateFolderParentMissing(t *testing.T) {
	svc, _, _ := newFolderFixture()
	missing := primitive.NewObjectID()

	_, err := svc.CreateFolder(context.Background(), primitive.NewObjectID(), "x", &missing)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, apperrors.CodeFolderNotFound, apperrors.CodeOf(err))
}

func TestCreateFolderInvalidName(t *testing.T) {
	svc, _, _ := newFolderFixture()
	for _, name := range []string{"", "bad/name", "bad\\name", "trailing."} {
		_, err := svc.CreateFolder(context.Background(), primitive.NewObjectID(), name, nil)
		assert.True(t, apperrors.IsValidation(err), "name %q should be rejected", name)
	}
}

func TestCreateFolderInsertFailureRemovesMarker(t *testing.T) {
	svc, folders, store := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	folders.insertErr = errors.New("write concern failed")
	_, err := svc.CreateFolder(ctx, owner, "ghost", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsStorageFailed(err))

	stat, err := store.Head(ctx, testContainer, "folders/"+owner.Hex()+"/ghost/")
	require.NoError(t, err)
	assert.Nil(t, stat, "orphan marker should have been removed")
}

func TestRenameFolderMovesSubtreeObjects(t *testing.T) {
	svc, _, store := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	folder, err := svc.CreateFolder(ctx, owner, "old", nil)
	require.NoError(t, err)

	oldPrefix := "folders/" + owner.Hex() + "/old/"
	for _, name := range []string{"one.txt", "two.txt", "sub/three.txt"} {
		require.NoError(t, store.Put(ctx, testContainer, oldPrefix+name, strings.NewReader("x"), 1, "text/plain"))
	}

	renamed, err := svc.RenameFolder(ctx, owner, folder.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", renamed.Name)

	newPrefix := "folders/" + owner.Hex() + "/new/"
	assert.Empty(t, store.keysWithPrefix(testContainer, oldPrefix), "old prefix should be gone")
	assert.Equal(t, []string{
		newPrefix,
		newPrefix + "one.txt",
		newPrefix + "sub/three.txt",
		newPrefix + "two.txt",
	}, store.keysWithPrefix(testContainer, newPrefix))
}

func TestRenameFolderUpdatesDescendantPaths(t *testing.T) {
	svc, _, store := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	top, err := svc.CreateFolder(ctx, owner, "top", nil)
	require.NoError(t, err)
	inner, err := svc.CreateFolder(ctx, owner, "inner", &top.ID)
	require.NoError(t, err)

	innerPrefix := "folders/" + owner.Hex() + "/top/inner/"
	require.NoError(t, store.Put(ctx, testContainer, innerPrefix+"doc.txt", strings.NewReader("x"), 1, "text/plain"))

	_, err = svc.RenameFolder(ctx, owner, top.ID, "moved")
	require.NoError(t, err)

	// The descendant's computed path reflects the new name immediately.
	segments, err := svc.PathSegments(ctx, owner, &inner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"moved"}, segments)

	movedPrefix := "folders/" + owner.Hex() + "/moved/inner/"
	assert.Empty(t, store.keysWithPrefix(testContainer, "folders/"+owner.Hex()+"/top/"))
	assert.Equal(t, []string{movedPrefix, movedPrefix + "doc.txt"},
		store.keysWithPrefix(testContainer, movedPrefix))
}

func TestRenameFolderSameNameIsNoop(t *testing.T) {
	svc, _, _ := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	folder, err := svc.CreateFolder(ctx, owner, "same", nil)
	require.NoError(t, err)

	got, err := svc.RenameFolder(ctx, owner, folder.ID, "same")
	require.NoError(t, err)
	assert.Equal(t, "same", got.Name)
}

func TestRenameFolderSiblingConflict(t *testing.T) {
	svc, _, _ := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	_, err := svc.CreateFolder(ctx, owner, "taken", nil)
	require.NoError(t, err)
	folder, err := svc.CreateFolder(ctx, owner, "free", nil)
	require.NoError(t, err)

	_, err = svc.RenameFolder(ctx, owner, folder.ID, "taken")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFolderExists, apperrors.CodeOf(err))
}

func TestRenameFolderRollsBackOnMetadataFailure(t *testing.T) {
	svc, folders, store := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	folder, err := svc.CreateFolder(ctx, owner, "old", nil)
	require.NoError(t, err)

	oldPrefix := "folders/" + owner.Hex() + "/old/"
	require.NoError(t, store.Put(ctx, testContainer, oldPrefix+"keep.txt", strings.NewReader("x"), 1, "text/plain"))

	folders.updateErr = errors.New("update failed")
	_, err = svc.RenameFolder(ctx, owner, folder.ID, "new")
	require.Error(t, err)
	assert.True(t, apperrors.IsStorageFailed(err))

	assert.Equal(t, []string{oldPrefix, oldPrefix + "keep.txt"},
		store.keysWithPrefix(testContainer, oldPrefix), "objects should be back under the old prefix")
	assert.Empty(t, store.keysWithPrefix(testContainer, "folders/"+owner.Hex()+"/new/"))
}

func TestGetFolderNotFound(t *testing.T) {
	svc, _, _ := newFolderFixture()
	_, err := svc.GetFolder(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFolderNotFound, apperrors.CodeOf(err))
}

func TestPathSegmentsRootIsEmpty(t *testing.T) {
	svc, _, _ := newFolderFixture()
	segments, err := svc.PathSegments(context.Background(), primitive.NewObjectID(), nil)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSoftDeleteSubtreeCascades(t *testing.T) {
	svc, folders, store := newFolderFixture()
	ctx := context.Background()
	owner := primitive.NewObjectID()

	root, err := svc.CreateFolder(ctx, owner, "root", nil)
	require.NoError(t, err)
	child, err := svc.CreateFolder(ctx, owner, "child", &root.ID)
	require.NoError(t, err)
	_, err = svc.CreateFolder(ctx, owner, "grand", &child.ID)
	require.NoError(t, err)

	// A file object outside the folders/ tree must survive the cascade.
	fileKey := owner.Hex() + "/doc.pdf"
	require.NoError(t, store.Put(ctx, testContainer, fileKey, strings.NewReader("pdf"), 3, "application/pdf"))

	count, err := svc.SoftDeleteSubtree(ctx, owner, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = svc.GetFolder(ctx, owner, child.ID)
	assert.True(t, apperrors.IsNotFound(err), "descendants should be soft-deleted")

	assert.Empty(t, store.keysWithPrefix(testContainer, "folders/"+owner.Hex()+"/root/"))
	stat, err := store.Head(ctx, testContainer, fileKey)
	require.NoError(t, err)
	assert.NotNil(t, stat, "file objects are not touched by a folder delete")

	// The rows survive as soft-deleted records.
	folders.mu.Lock()
	deleted := 0
	for _, f := range folders.folders {
		if f.IsDeleted {
			deleted++
		}
	}
	folders.mu.Unlock()
	assert.Equal(t, 3, deleted)
}

func TestSoftDeleteSubtreeMissingFolder(t *testing.T) {
	svc, _, _ := newFolderFixture()
	_, err := svc.SoftDeleteSubtree(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFolderNotFound, apperrors.CodeOf(err))
}

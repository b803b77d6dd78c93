package services

import "strings"

// Key-prefix contract with the object store:
//
//	file objects    <ownerId>/<generatedFileName>
//	folder markers  folders/<ownerId>/<segment1>/<segment2>/.../
//
// The folders/ tree mirrors the logical hierarchy and is rewritten on folder
// renames; file keys encode only the owner and never change on a move.

const folderKeyRoot = "folders"

var whitespaceCollapser = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// SanitizeSegment normalizes one folder path segment: trims surrounding
// space, converts backslashes to forward slashes, collapses internal
// whitespace runs to a single space, and strips leading/trailing slashes.
func SanitizeSegment(segment string) string {
	s := strings.ReplaceAll(segment, "\\", "/")
	s = whitespaceCollapser.Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)
	return strings.Trim(s, "/")
}

// FileObjectKey returns the storage key for a file object.
func FileObjectKey(ownerID, fileName string) string {
	return ownerID + "/" + fileName
}

// FolderPrefix returns the storage prefix for a folder path. Empty segments
// (after sanitization) are dropped. The result always ends with a slash.
func FolderPrefix(ownerID string, segments []string) string {
	parts := []string{folderKeyRoot, ownerID}
	for _, seg := range segments {
		if clean := SanitizeSegment(seg); clean != "" {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, "/") + "/"
}

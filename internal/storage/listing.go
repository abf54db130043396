package storage

import (
	"regexp"
	"strings"

	"github.com/storagekit/storagekit/internal/models"
	"github.com/storagekit/storagekit/internal/s3"
)

var slashRun = regexp.MustCompile(`/+`)

// ListPrefix turns a user supplied folder path into the key prefix to list.
func ListPrefix(path string) string {
	if path == "" || strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// FolderPrefix is the prefix removed by a recursive folder delete.
func FolderPrefix(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// UploadKey places filename inside dir, collapsing repeated slashes.
func UploadKey(dir, filename string) string {
	if dir == "" {
		return filename
	}
	key := slashRun.ReplaceAllString(dir+"/"+filename, "/")
	return strings.TrimLeft(key, "/")
}

// BaseName is the last path segment of a key.
func BaseName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// FormatListing splits one non-recursive enumeration under prefix into
// folders and files, names relative to prefix. Entries whose relative name
// is empty (the directory marker for prefix itself) are dropped.
func FormatListing(prefix string, entries []s3.ObjectInfo) ([]models.Folder, []models.File) {
	folders := []models.Folder{}
	files := []models.File{}
	for _, e := range entries {
		if e.IsPrefix {
			name := strings.TrimSuffix(strings.TrimPrefix(e.Key, prefix), "/")
			if name == "" {
				continue
			}
			folders = append(folders, models.Folder{Name: name, Path: e.Key, Type: "folder"})
			continue
		}
		name := strings.TrimPrefix(e.Key, prefix)
		if name == "" {
			continue
		}
		files = append(files, models.File{
			Name:        name,
			Path:        e.Key,
			Size:        e.Size,
			Modified:    e.LastModified,
			ContentType: e.ContentType,
			Type:        "file",
		})
	}
	return folders, files
}

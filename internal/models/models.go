package models

import (
	"time"
)

// Records returned by the gateway. They are derived from the backend on every
// request and never stored.

type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // always "folder"
}

// FileURLs are the download links derived for a file. DirectURL and
// URLExpiresIn are omitted when the backend could not sign a URL.
type FileURLs struct {
	URL          string  `json:"url,omitempty"`
	DirectURL    *string `json:"directUrl,omitempty"`
	URLExpiresIn *int    `json:"urlExpiresIn,omitempty"`
}

type File struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	ContentType string    `json:"contentType,omitempty"`
	Type        string    `json:"type"` // always "file"
	FileURLs
}

type Listing struct {
	Bucket  string   `json:"bucket"`
	Path    string   `json:"path"`
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}

type UploadResult struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	FileURLs
}

type ObjectRef struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

type FolderDeleteResult struct {
	Bucket  string `json:"bucket"`
	Path    string `json:"path"`
	Deleted int    `json:"deleted"`
}

type PresignedURL struct {
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// Persistent audit model

type AuditEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Time      time.Time `gorm:"index" json:"time"`
	Action    string    `json:"action"`
	Bucket    string    `gorm:"index" json:"bucket"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	RequestID string    `json:"requestId"`
	RemoteIP  string    `json:"remoteIp"`
	Bytes     int64     `json:"bytes"`
}

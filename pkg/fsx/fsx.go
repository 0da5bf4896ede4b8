// Package fsx abstracts a keyed object store. Tenant configuration files are
// stored through it; the backend is local disk in development and S3 in
// production.
package fsx

import (
	"context"
	"time"
)

// FileInfo describes a stored object.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileReader provides read operations.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, path string) ([]FileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// FileWriter provides write operations.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, data []byte) error
}

// FileDeleter provides deletion.
type FileDeleter interface {
	DeleteFile(ctx context.Context, path string) error
}

// PathOperations provides backend-appropriate path joining.
type PathOperations interface {
	Join(elem ...string) string
}

// FileSystem combines all object-store operations.
type FileSystem interface {
	FileReader
	FileWriter
	FileDeleter
	PathOperations
}

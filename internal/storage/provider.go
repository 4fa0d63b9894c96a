// Package storage defines the vault file-system abstraction.
package storage

import "time"

// NodeExt is the extension of node files.
const NodeExt = ".md"

// FileMeta is the lightweight listing entry for one node file.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for vault file operations. Paths are
// slash-separated and relative to the vault root.
type Provider interface {
	// List returns metadata for every node file under dir.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Exists reports whether a regular file is present at path.
	Exists(path string) (bool, error)
	// Write atomically replaces the content of path.
	Write(path string, content []byte) error
	// Create atomically writes a new file and fails with fs.ErrExist when
	// path is already taken.
	Create(path string, content []byte) error
	// Root returns the absolute vault directory.
	Root() string
}

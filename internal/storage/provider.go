// Package storage defines the inbox file-system abstraction.
package storage

import "time"

// Entry describes one draft file.
type Entry struct {
	// Path is relative to the provider root.
	Path     string
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for inbox file operations. All paths are
// relative to the provider root.
type Provider interface {
	// List returns the .md files directly inside dir, sorted by name.
	// Subdirectories are not descended into.
	List(dir string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
}

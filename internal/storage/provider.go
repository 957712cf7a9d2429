// Package storage defines the vault file-system abstraction. The vault
// holds one envelope file per chapter; content inside an envelope is
// already encrypted by the time it reaches this layer.
package storage

import "time"

// FileMeta is a lightweight description of one vault file.
type FileMeta struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every chapter envelope under dir
	// (relative to the vault root; empty for the whole vault).
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to the vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the vault root).
	Delete(path string) error
}

// Package storage defines the output-directory abstraction for emitted chunks.
package storage

import "github.com/starford/raido/internal/models"

// Provider is the interface for chunk artifact operations.
type Provider interface {
	// List returns metadata for every artifact in the output directory.
	List() ([]models.ArtifactInfo, error)
	// Read returns the raw bytes of the artifact with the given file name.
	Read(name string) ([]byte, error)
	// Write atomically writes an artifact.
	Write(name string, content []byte) error
	// Delete removes an artifact.
	Delete(name string) error
	// Prune deletes every artifact whose name is not in keep.
	Prune(keep map[string]struct{}) error
}

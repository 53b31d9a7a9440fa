// Package models defines the domain types for Raido.
package models

import "time"

// ArtifactInfo is a lightweight representation of one emitted chunk file,
// returned by output-directory list operations.
type ArtifactInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

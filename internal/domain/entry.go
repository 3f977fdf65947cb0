package domain

import (
	"sort"
	"time"
)

// RemoteEntry is a single record of the engine's recursive JSON listing.
// Field names match the engine's lsjson output so it unmarshals directly.
type RemoteEntry struct {
	Path     string    `json:"Path"`
	Name     string    `json:"Name"`
	Size     int64     `json:"Size"`
	MimeType string    `json:"MimeType,omitempty"`
	ModTime  time.Time `json:"ModTime"`
	IsDir    bool      `json:"IsDir"`
}

// Equal compares two entries including metadata. Timestamps are compared as
// reported by the engine, which already normalizes them within the
// configured modify-window at listing time.
func (e RemoteEntry) Equal(other RemoteEntry) bool {
	return e.Path == other.Path &&
		e.Name == other.Name &&
		e.Size == other.Size &&
		e.MimeType == other.MimeType &&
		e.IsDir == other.IsDir &&
		e.ModTime.Equal(other.ModTime)
}

// Snapshot is the full remote tree state at one poll, ordered by path so
// that two snapshots of the same tree compare equal regardless of listing
// order.
type Snapshot []RemoteEntry

// Sort orders the snapshot by path for stable comparison
func (s Snapshot) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].Path < s[j].Path
	})
}

// Equal reports whether two snapshots describe the identical remote state,
// comparing every entry structurally, not just the path set.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

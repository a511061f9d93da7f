// Package directory is the in-memory index of user profiles by
// identity and tag, fed by presence announcements.
package directory

import (
	"errors"
	"strings"
	"sync"

	"github.com/enot3481-eng/messenger-app/internal/models"
)

// ErrTagTaken is returned when a profile upsert would claim a tag
// already owned by a different identity.
var ErrTagTaken = errors.New("tag already in use")

// Index holds profiles keyed by identity with a case-insensitive tag
// index. Upserts are last-write-wins for the same identity; tag
// uniqueness across identities is enforced atomically here, at write
// time.
type Index struct {
	mu       sync.RWMutex
	byID     map[string]models.Profile
	tagOwner map[string]string // normalized tag -> identity
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		byID:     make(map[string]models.Profile),
		tagOwner: make(map[string]string),
	}
}

// Upsert stores p, replacing any existing profile for the same
// identity. A tag that normalizes to one owned by another identity is
// rejected with ErrTagTaken and the index is left unchanged.
func (ix *Index) Upsert(p models.Profile) error {
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	tag := models.NormalizeTag(p.Tag)
	if tag == "" {
		return errors.New("profile tag is required")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if owner, taken := ix.tagOwner[tag]; taken && owner != p.ID {
		return ErrTagTaken
	}

	// Release the identity's previous tag if it changed.
	if prev, ok := ix.byID[p.ID]; ok {
		if prevTag := models.NormalizeTag(prev.Tag); prevTag != tag {
			delete(ix.tagOwner, prevTag)
		}
	}

	ix.byID[p.ID] = p
	ix.tagOwner[tag] = p.ID
	return nil
}

// FindByID returns the profile for identity, if known.
func (ix *Index) FindByID(identity string) (models.Profile, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.byID[identity]
	return p, ok
}

// FindByTag returns the profile owning tag. The match is exact after
// normalization, so "@Alice99", "alice99" and "@ALICE99" all resolve to
// the same profile.
func (ix *Index) FindByTag(tag string) (models.Profile, bool) {
	norm := models.NormalizeTag(tag)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.tagOwner[norm]
	if !ok {
		return models.Profile{}, false
	}
	p, ok := ix.byID[id]
	return p, ok
}

// Search returns every profile whose tag or display name contains
// query, case-insensitively. The result set is unordered.
func (ix *Index) Search(query string) []models.Profile {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimPrefix(q, "@")

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []models.Profile
	for _, p := range ix.byID {
		if strings.Contains(strings.ToLower(p.Tag), q) ||
			strings.Contains(strings.ToLower(p.DisplayName), q) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of indexed profiles.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

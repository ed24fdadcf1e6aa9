// Package storage provides the face store: the set of enrolled identities
// and their embeddings, kept in memory for matching and persisted through a
// Backend. Embeddings can be encrypted at rest using NaCl secretbox.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/recognition"
)

// ErrStoreFull is returned when a new identity would exceed the store capacity.
var ErrStoreFull = errors.New("face store is full")

// ErrEmptyEmbedding is returned when an identity would be saved without embeddings.
var ErrEmptyEmbedding = errors.New("identity has no embeddings")

// ErrIdentityNotFound is returned when the identity is not enrolled.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrStorageAccess is returned when storage cannot be accessed.
var ErrStorageAccess = errors.New("failed to access storage")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// Backend persists identities durably.
type Backend interface {
	// Load returns all stored identities in commit order.
	Load() ([]recognition.Identity, error)
	// Append adds embeddings to the identity with the given id, creating it
	// with enrolledAt if it does not exist yet.
	Append(id int, embeddings []recognition.Embedding, enrolledAt time.Time) error
	// Remove deletes an identity and its embeddings.
	Remove(id int) error
	// Backup writes a consistent copy of the store to dest.
	Backup(dest string) error
	Close() error
}

// OpenBackend opens the backend named kind ("file" or "sqlite") at path.
func OpenBackend(kind, path string, encrypted bool) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch kind {
	case "file":
		b, err = NewFileBackend(path, encrypted)
	case "sqlite":
		if encrypted {
			logging.Component("store").Warn("Encryption is not supported by the sqlite backend, embeddings are stored unencrypted")
		}
		b, err = NewSQLiteBackend(path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FaceStore is the in-memory view of the enrolled identities. Writes go to
// the backend first, so memory never holds an identity the backend lost.
type FaceStore struct {
	mu         sync.RWMutex
	backend    Backend
	capacity   int
	identities []recognition.Identity
	now        func() time.Time

	// highest id held by the backend at load, including skipped records
	loadedMax int
}

// Load builds a FaceStore from the backend. A backend read failure still
// returns a usable empty store together with the error, so the caller can
// decide to continue degraded.
func Load(backend Backend, capacity int) (*FaceStore, error) {
	s := &FaceStore{
		backend:  backend,
		capacity: capacity,
		now:      time.Now,
	}

	records, err := backend.Load()
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	log := logging.Component("store")
	seen := make(map[int]bool, len(records))
	for _, rec := range records {
		if rec.ID > s.loadedMax {
			s.loadedMax = rec.ID
		}
		switch {
		case len(rec.Embeddings) == 0:
			log.Warnf("Skipping identity %d without embeddings", rec.ID)
			continue
		case seen[rec.ID]:
			log.Warnf("Skipping duplicate identity %d", rec.ID)
			continue
		case len(s.identities) >= capacity:
			log.Warnf("Dropping identity %d, store capacity is %d", rec.ID, capacity)
			continue
		}
		seen[rec.ID] = true
		s.identities = append(s.identities, rec.Clone())
	}

	return s, nil
}

// Append stores embeddings under id. A new id takes a capacity slot; an
// existing id grows its embedding set.
func (s *FaceStore) Append(id int, embeddings ...recognition.Embedding) error {
	if len(embeddings) == 0 {
		return ErrEmptyEmbedding
	}
	for _, e := range embeddings {
		if len(e) == 0 {
			return ErrEmptyEmbedding
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 && len(s.identities) >= s.capacity {
		return ErrStoreFull
	}

	enrolledAt := s.now().UTC()
	if err := s.backend.Append(id, embeddings, enrolledAt); err != nil {
		return fmt.Errorf("failed to persist identity %d: %w", id, err)
	}

	copies := make([]recognition.Embedding, len(embeddings))
	for i, e := range embeddings {
		copies[i] = e.Clone()
	}

	if idx >= 0 {
		s.identities[idx].Embeddings = append(s.identities[idx].Embeddings, copies...)
	} else {
		s.identities = append(s.identities, recognition.Identity{
			ID:         id,
			Embeddings: copies,
			EnrolledAt: enrolledAt,
		})
	}

	logging.Component("store").WithFields(logging.Fields{
		"id":         id,
		"embeddings": len(embeddings),
		"identities": len(s.identities),
	}).Info("Identity saved")
	return nil
}

// Remove deletes an identity.
func (s *FaceStore) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrIdentityNotFound
	}
	if err := s.backend.Remove(id); err != nil {
		return fmt.Errorf("failed to remove identity %d: %w", id, err)
	}

	s.identities = append(s.identities[:idx], s.identities[idx+1:]...)
	logging.Component("store").Infof("Removed identity %d", id)
	return nil
}

// All returns a snapshot of the identities in store order.
func (s *FaceStore) All() []recognition.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]recognition.Identity, len(s.identities))
	copy(out, s.identities)
	return out
}

// NextID returns one more than the highest id in memory or in the backend
// at load time, or 1 when both are empty. Ids of records Load skipped are
// never handed out again.
func (s *FaceStore) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	highest := s.loadedMax
	for _, id := range s.identities {
		if id.ID > highest {
			highest = id.ID
		}
	}
	return highest + 1
}

// Len returns the number of stored identities.
func (s *FaceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

// Capacity returns the maximum number of identities.
func (s *FaceStore) Capacity() int {
	return s.capacity
}

// Backup copies the durable store to dest.
func (s *FaceStore) Backup(dest string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.Backup(dest)
}

// Close closes the backend.
func (s *FaceStore) Close() error {
	return s.backend.Close()
}

func (s *FaceStore) indexOf(id int) int {
	for i := range s.identities {
		if s.identities[i].ID == id {
			return i
		}
	}
	return -1
}

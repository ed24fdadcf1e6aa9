package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/MrCodeEU/facegate/pkg/recognition"
)

// ErrNotDurable is returned by backends that cannot produce a durable copy.
var ErrNotDurable = errors.New("store is not durable")

// MemoryBackend keeps identities in process memory only. It backs a
// degraded store when the durable backend is unavailable.
type MemoryBackend struct {
	mu         sync.Mutex
	identities []recognition.Identity
}

// NewMemoryBackend returns a MemoryBackend seeded with identities.
func NewMemoryBackend(identities ...recognition.Identity) *MemoryBackend {
	m := &MemoryBackend{}
	for _, id := range identities {
		m.identities = append(m.identities, id.Clone())
	}
	return m
}

func (m *MemoryBackend) Load() ([]recognition.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]recognition.Identity, len(m.identities))
	for i, id := range m.identities {
		out[i] = id.Clone()
	}
	return out, nil
}

func (m *MemoryBackend) Append(id int, embeddings []recognition.Embedding, enrolledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copies := make([]recognition.Embedding, len(embeddings))
	for i, e := range embeddings {
		copies[i] = e.Clone()
	}

	for i := range m.identities {
		if m.identities[i].ID == id {
			m.identities[i].Embeddings = append(m.identities[i].Embeddings, copies...)
			return nil
		}
	}
	m.identities = append(m.identities, recognition.Identity{ID: id, Embeddings: copies, EnrolledAt: enrolledAt})
	return nil
}

func (m *MemoryBackend) Remove(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.identities {
		if m.identities[i].ID == id {
			m.identities = append(m.identities[:i], m.identities[i+1:]...)
			return nil
		}
	}
	return ErrIdentityNotFound
}

func (m *MemoryBackend) Backup(dest string) error {
	return ErrNotDurable
}

func (m *MemoryBackend) Close() error {
	return nil
}

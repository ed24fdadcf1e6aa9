package storage

import (
	"time"

	"github.com/MrCodeEU/facegate/pkg/recognition"
)

type MockBackend struct {
	LoadFunc   func() ([]recognition.Identity, error)
	AppendFunc func(id int, embeddings []recognition.Embedding, enrolledAt time.Time) error
	RemoveFunc func(id int) error
	BackupFunc func(dest string) error
	CloseFunc  func() error
}

func (m *MockBackend) Load() ([]recognition.Identity, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return nil, nil
}

func (m *MockBackend) Append(id int, embeddings []recognition.Embedding, enrolledAt time.Time) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(id, embeddings, enrolledAt)
	}
	return nil
}

func (m *MockBackend) Remove(id int) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(id)
	}
	return nil
}

func (m *MockBackend) Backup(dest string) error {
	if m.BackupFunc != nil {
		return m.BackupFunc(dest)
	}
	return nil
}

func (m *MockBackend) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func createTestEmbeddings(count int) []recognition.Embedding {
	embeddings := make([]recognition.Embedding, count)
	for i := range embeddings {
		emb := make(recognition.Embedding, 128)
		for j := range emb {
			emb[j] = float32(i+j) / 128.0
		}
		embeddings[i] = emb
	}
	return embeddings
}

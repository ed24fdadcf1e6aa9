package enrollment

import (
	"github.com/MrCodeEU/facegate/pkg/recognition"
)

type MockStore struct {
	NextIDFunc func() int
	AppendFunc func(id int, embeddings ...recognition.Embedding) error

	Appended map[int][]recognition.Embedding
}

func (m *MockStore) NextID() int {
	if m.NextIDFunc != nil {
		return m.NextIDFunc()
	}
	return 1
}

func (m *MockStore) Append(id int, embeddings ...recognition.Embedding) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(id, embeddings...); err != nil {
			return err
		}
	}
	if m.Appended == nil {
		m.Appended = make(map[int][]recognition.Embedding)
	}
	m.Appended[id] = append(m.Appended[id], embeddings...)
	return nil
}

func face(v float32) []recognition.Embedding {
	return []recognition.Embedding{{v, 1, 0}}
}

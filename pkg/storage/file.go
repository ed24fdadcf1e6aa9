package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/recognition"
	"github.com/google/renameio"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32

	documentVersion = 1
)

type document struct {
	Version    int                    `json:"version"`
	Identities []recognition.Identity `json:"identities"`
}

// FileBackend stores all identities in a single JSON document, optionally
// sealed with a machine-bound key. Every write replaces the file atomically.
type FileBackend struct {
	mu                sync.Mutex
	path              string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
}

// NewFileBackend creates a FileBackend writing to path.
func NewFileBackend(path string, encryptionEnabled bool) (*FileBackend, error) {
	fb := &FileBackend{
		path:              path,
		encryptionEnabled: encryptionEnabled,
	}

	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		fb.encryptionKey = key
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return fb, nil
}

// deriveKey derives an encryption key from machine-specific information.
// This ties the encrypted data to this specific machine.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte

	var identity strings.Builder

	// Machine ID (Linux specific)
	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}

	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}

	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facegate-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

// Load reads every identity from the document. A missing file is an empty store.
func (fb *FileBackend) Load() ([]recognition.Identity, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	doc, err := fb.read()
	if err != nil {
		return nil, err
	}
	return doc.Identities, nil
}

// Append adds embeddings to an identity and rewrites the document.
func (fb *FileBackend) Append(id int, embeddings []recognition.Embedding, enrolledAt time.Time) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	doc, err := fb.read()
	if err != nil {
		return err
	}

	found := false
	for i := range doc.Identities {
		if doc.Identities[i].ID == id {
			doc.Identities[i].Embeddings = append(doc.Identities[i].Embeddings, embeddings...)
			found = true
			break
		}
	}
	if !found {
		doc.Identities = append(doc.Identities, recognition.Identity{
			ID:         id,
			Embeddings: embeddings,
			EnrolledAt: enrolledAt,
		})
	}

	return fb.write(doc)
}

// Remove deletes an identity and rewrites the document.
func (fb *FileBackend) Remove(id int) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	doc, err := fb.read()
	if err != nil {
		return err
	}

	kept := doc.Identities[:0]
	for _, identity := range doc.Identities {
		if identity.ID != id {
			kept = append(kept, identity)
		}
	}
	if len(kept) == len(doc.Identities) {
		return ErrIdentityNotFound
	}
	doc.Identities = kept

	return fb.write(doc)
}

// Backup copies the document as stored. Encrypted backups only open on
// the machine that wrote them.
func (fb *FileBackend) Backup(dest string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	data, err := os.ReadFile(fb.path)
	if os.IsNotExist(err) {
		data, err = fb.encode(&document{})
	}
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}
	if err := renameio.WriteFile(dest, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Close is a no-op; the document is written on every change.
func (fb *FileBackend) Close() error {
	return nil
}

func (fb *FileBackend) read() (*document, error) {
	doc := &document{Version: documentVersion}

	data, err := os.ReadFile(fb.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	if fb.encryptionEnabled {
		data, err = fb.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt store: %w", err)
		}
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal store: %w", err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("unsupported store version %d", doc.Version)
	}
	return doc, nil
}

func (fb *FileBackend) encode(doc *document) ([]byte, error) {
	doc.Version = documentVersion
	if doc.Identities == nil {
		doc.Identities = []recognition.Identity{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal store: %w", err)
	}

	if fb.encryptionEnabled {
		data, err = fb.encrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt store: %w", err)
		}
	}
	return data, nil
}

func (fb *FileBackend) write(doc *document) error {
	data, err := fb.encode(doc)
	if err != nil {
		return err
	}

	if err := renameio.WriteFile(fb.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}

	logging.Debugf("Wrote %d identities to %s", len(doc.Identities), fb.path)
	return nil
}

// encrypt encrypts data using NaCl secretbox.
func (fb *FileBackend) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &fb.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (fb *FileBackend) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fb.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}

	return plaintext, nil
}

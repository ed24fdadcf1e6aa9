package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/facegate/pkg/recognition"
	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps identities in an embedded SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates the database at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			id INTEGER PRIMARY KEY,
			enrolled_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identity_id INTEGER NOT NULL,
			vector BLOB NOT NULL,
			FOREIGN KEY(identity_id) REFERENCES identities(id)
		);`,
		`CREATE INDEX IF NOT EXISTS embeddings_identity ON embeddings(identity_id);`,
	}

	for _, query := range queries {
		if _, err := b.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Load returns identities ordered by id, embeddings in insertion order.
func (b *SQLiteBackend) Load() ([]recognition.Identity, error) {
	rows, err := b.db.Query(`
		SELECT i.id, i.enrolled_at, e.vector
		FROM identities i
		LEFT JOIN embeddings e ON e.identity_id = i.id
		ORDER BY i.id, e.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var identities []recognition.Identity
	for rows.Next() {
		var (
			id         int
			enrolledAt int64
			vector     []byte
		)
		if err := rows.Scan(&id, &enrolledAt, &vector); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}

		n := len(identities)
		if n == 0 || identities[n-1].ID != id {
			identities = append(identities, recognition.Identity{
				ID:         id,
				EnrolledAt: time.UnixMilli(enrolledAt).UTC(),
			})
			n++
		}
		if vector != nil {
			emb, err := decodeVector(vector)
			if err != nil {
				return nil, fmt.Errorf("identity %d: %w", id, err)
			}
			identities[n-1].Embeddings = append(identities[n-1].Embeddings, emb)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return identities, nil
}

// Append inserts the identity if needed and its embeddings in one transaction.
func (b *SQLiteBackend) Append(id int, embeddings []recognition.Embedding, enrolledAt time.Time) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO identities (id, enrolled_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, enrolledAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO embeddings (identity_id, vector) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, emb := range embeddings {
		if _, err := stmt.Exec(id, encodeVector(emb)); err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	return tx.Commit()
}

// Remove deletes an identity and its embeddings.
func (b *SQLiteBackend) Remove(id int) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM embeddings WHERE identity_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIdentityNotFound
	}

	return tx.Commit()
}

// Backup writes a consistent snapshot of the database to dest, which must
// not exist yet.
func (b *SQLiteBackend) Backup(dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup destination already exists: %s", dest)
	}
	if _, err := b.db.Exec(`VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func encodeVector(e recognition.Embedding) []byte {
	buf := make([]byte, 4*len(e))
	for i, v := range e {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) (recognition.Embedding, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("malformed vector of %d bytes", len(buf))
	}
	e := make(recognition.Embedding, len(buf)/4)
	for i := range e {
		e[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return e, nil
}

package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// InsertChunks stores chunks in one transaction and fills in their IDs.
func (s *Store) InsertChunks(chunks []Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO chunks (source, seq, text, embedding, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert chunk: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range chunks {
		c := &chunks[i]
		c.CreatedAt = now
		res, err := stmt.Exec(c.Source, c.Seq, c.Text, encodeVector(c.Embedding), now)
		if err != nil {
			return fmt.Errorf("insert chunk %s#%d: %w", c.Source, c.Seq, err)
		}
		c.ID, _ = res.LastInsertId()
	}
	return tx.Commit()
}

// DeleteSource removes every chunk of a source so it can be re-indexed.
func (s *Store) DeleteSource(source string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("delete source: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AllChunks returns every chunk ordered by source and position.
func (s *Store) AllChunks() ([]Chunk, error) {
	rows, err := s.db.Query(`SELECT id, source, seq, text, embedding, created_at FROM chunks ORDER BY source, seq`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Source, &c.Seq, &c.Text, &blob, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.ID, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ChunkCount returns the number of indexed chunks.
func (s *Store) ChunkCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Sources lists indexed sources with their chunk counts.
func (s *Store) Sources() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT source, COUNT(*) FROM chunks GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out[src] = n
	}
	return out, rows.Err()
}

// encodeVector packs float32s little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/finsight/finrag/internal/chunk"
)

// fileMagic identifies a finrag index file and its format version.
var fileMagic = []byte("FINRAGIX1\n")

// indexFile is the gob-encoded payload written after the magic and checksum.
type indexFile struct {
	Model     string
	Dimension int
	Chunks    []chunk.Chunk
	Vectors   [][]float32
}

// Save writes the index to path as magic + sha256(payload) + payload.
// The write goes through a temp file and an atomic rename so a concurrent
// Load never observes a torn file.
func (f *Flat) Save(path string) error {
	var payload bytes.Buffer
	enc := gob.NewEncoder(&payload)
	err := enc.Encode(indexFile{
		Model:     f.model,
		Dimension: f.dimension,
		Chunks:    f.chunks,
		Vectors:   f.vectors,
	})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	sum := sha256.Sum256(payload.Bytes())

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	for _, part := range [][]byte{fileMagic, sum[:], payload.Bytes()} {
		if _, err := tmp.Write(part); err != nil {
			tmp.Close()
			return fmt.Errorf("write index: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// Load restores an index saved by Save. model, when non-empty, must match the
// model recorded in the file; an index built with a different embedding model
// would produce incomparable scores.
func Load(path, model string) (*Flat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	headerLen := len(fileMagic) + sha256.Size
	if len(data) < headerLen || !bytes.Equal(data[:len(fileMagic)], fileMagic) {
		return nil, fmt.Errorf("%w: %s: bad header", ErrCorrupt, path)
	}

	sum := data[len(fileMagic):headerLen]
	payload := data[headerLen:]
	actual := sha256.Sum256(payload)
	if !bytes.Equal(sum, actual[:]) {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, path)
	}

	var file indexFile
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	if model != "" && file.Model != model {
		return nil, fmt.Errorf("%w: index built with %q, current model is %q",
			ErrModelMismatch, file.Model, model)
	}

	f := &Flat{
		model:     file.Model,
		dimension: file.Dimension,
		vectors:   file.Vectors,
		chunks:    file.Chunks,
		byID:      make(map[string]int, len(file.Chunks)),
	}
	for i, c := range file.Chunks {
		f.byID[c.ID] = i
	}
	if f.Count() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIndex, path)
	}
	return f, nil
}

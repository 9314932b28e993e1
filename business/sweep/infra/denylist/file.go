// Package denylist persists denylisted tokens for the sweep Denylist.
package denylist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/fd1az/token-sweeper/business/sweep/app"
)

var _ app.DenylistStore = (*FileStore)(nil)

type fileEntry struct {
	Token   string    `yaml:"token"`
	AddedAt time.Time `yaml:"added_at"`
}

type fileDocument struct {
	Tokens []fileEntry `yaml:"tokens"`
}

// FileStore keeps the denylist in a YAML document. Writes replace the file
// atomically.
type FileStore struct {
	path string
	now  func() time.Time

	mu  sync.Mutex
	doc fileDocument
}

// NewFileStore creates a store at path. The file is created on first Append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Load reads the document; a missing file is an empty denylist.
func (s *FileStore) Load(_ context.Context) ([]common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.doc = fileDocument{}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read denylist: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse denylist %s: %w", s.path, err)
	}

	out := make([]common.Address, 0, len(doc.Tokens))
	for _, e := range doc.Tokens {
		if !common.IsHexAddress(e.Token) {
			return nil, fmt.Errorf("parse denylist %s: invalid address %q", s.path, e.Token)
		}
		out = append(out, common.HexToAddress(e.Token))
	}
	s.doc = doc
	return out, nil
}

// Append adds token and rewrites the file. Existing entries are kept as is.
func (s *FileStore) Append(_ context.Context, token common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.doc.Tokens {
		if common.HexToAddress(e.Token) == token {
			return nil
		}
	}

	next := fileDocument{Tokens: append(append([]fileEntry(nil), s.doc.Tokens...),
		fileEntry{Token: token.Hex(), AddedAt: s.now().UTC()})}
	if err := s.write(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *FileStore) write(doc fileDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode denylist: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create denylist dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".denylist-*.yaml")
	if err != nil {
		return fmt.Errorf("write denylist: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write denylist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write denylist: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write denylist: %w", err)
	}
	return nil
}

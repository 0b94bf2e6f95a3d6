// Package file persists ledgers and conversations as JSON files.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravituringworks/agency/pkg/domain"
)

// jsonDir stores one JSON document per ID in a directory.
type jsonDir struct {
	dir string
}

func (d jsonDir) path(id string) (string, error) {
	if id == "" {
		return "", errors.New("id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid id %q", id)
	}
	return filepath.Join(d.dir, id+".json"), nil
}

// write replaces the document atomically: a temp file in the same directory
// is fsynced and renamed over the destination.
func (d jsonDir) write(id string, v any) error {
	destPath, err := d.path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	tmpFile, err := os.CreateTemp(d.dir, "tmp-"+id+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename refuses to overwrite on Windows.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}

// read decodes the document into v, returning notFound when it is missing.
func (d jsonDir) read(id string, v any, notFound error) error {
	filePath, err := d.path(id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}
	return nil
}

func (d jsonDir) delete(id string) error {
	filePath, err := d.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", filePath, err)
	}
	return nil
}

func (d jsonDir) list() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", d.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Store implements ports.LedgerStore. Each ledger is a JSON file named after its ID.
type Store struct {
	BasePath string
	files    jsonDir
}

// New creates a ledger Store under basePath, ".agency/ledgers" when empty.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".agency", "ledgers")
	}
	return &Store{BasePath: basePath, files: jsonDir{dir: basePath}}
}

// Save persists the ledger atomically.
func (s *Store) Save(_ context.Context, ledger *domain.TransactionLedger) error {
	return s.files.write(ledger.ID, ledger)
}

// Load reads a ledger from its JSON file.
func (s *Store) Load(_ context.Context, id string) (*domain.TransactionLedger, error) {
	var ledger domain.TransactionLedger
	if err := s.files.read(id, &ledger, domain.ErrLedgerNotFound); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// Delete removes the ledger file.
func (s *Store) Delete(_ context.Context, id string) error {
	return s.files.delete(id)
}

// List returns the IDs of all stored ledgers.
func (s *Store) List(_ context.Context) ([]string, error) {
	return s.files.list()
}

// ConversationStore implements ports.ConversationStore with one file per session.
type ConversationStore struct {
	files jsonDir
}

// NewConversationStore stores histories under basePath, ".agency/sessions" when empty.
func NewConversationStore(basePath string) *ConversationStore {
	if basePath == "" {
		basePath = filepath.Join(".agency", "sessions")
	}
	return &ConversationStore{files: jsonDir{dir: basePath}}
}

func (s *ConversationStore) Save(_ context.Context, sessionID string, messages []domain.Message) error {
	return s.files.write(sessionID, messages)
}

func (s *ConversationStore) Load(_ context.Context, sessionID string) ([]domain.Message, error) {
	var messages []domain.Message
	if err := s.files.read(sessionID, &messages, domain.ErrSessionNotFound); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *ConversationStore) Delete(_ context.Context, sessionID string) error {
	return s.files.delete(sessionID)
}

func (s *ConversationStore) List(_ context.Context) ([]string, error) {
	return s.files.list()
}

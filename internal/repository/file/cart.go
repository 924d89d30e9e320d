// Package file stores each session's cart as a JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/istominvi/shaurmaniya/internal/repository"
)

// KeyPrefix names every cart document.
const KeyPrefix = "shaurmania-cart"

type CartRepository struct {
	dir string
}

// NewCartRepository creates the directory if needed.
func NewCartRepository(dir string) (*CartRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cart directory: %w", err)
	}
	return &CartRepository{dir: dir}, nil
}

func (r *CartRepository) Load(_ context.Context, sessionID string) (*entity.Cart, error) {
	path, err := r.path(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repository.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart file: %w", err)
	}

	var c entity.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode cart file %s: %w", path, err)
	}
	return &c, nil
}

// Save replaces the document atomically through a temp file and rename.
func (r *CartRepository) Save(_ context.Context, sessionID string, c entity.Cart) error {
	path, err := r.path(sessionID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, "."+KeyPrefix+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace cart file: %w", err)
	}
	return nil
}

func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	path, err := r.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cart file: %w", err)
	}
	return nil
}

func (r *CartRepository) path(sessionID string) (string, error) {
	if !repository.ValidSessionID(sessionID) {
		return "", fmt.Errorf("%w: %q", repository.ErrInvalidSessionID, sessionID)
	}
	return filepath.Join(r.dir, KeyPrefix+"-"+sessionID+".json"), nil
}

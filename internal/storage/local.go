// Package storage implements the receipt upload sink: an allow-listed,
// size-capped file store returning opaque filenames, with idempotent
// deletion.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxReceiptSize is the upload size cap (5 MiB).
const MaxReceiptSize = 5 * 1024 * 1024

// Upload errors surfaced to form validation.
var (
	ErrFileTooLarge    = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedType = errors.New("file type is not allowed")
)

// allowedTypes is the receipt MIME allow-list.
var allowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/pdf": true,
}

// Upload carries one incoming file: its content, the client-declared MIME
// type and the declared size.
type Upload struct {
	Reader       io.Reader
	DeclaredType string
	Size         int64
}

// Store is the upload sink the warranty service writes receipts to.
type Store interface {
	// Save stores the upload and returns the opaque stored filename.
	Save(upload Upload) (string, error)
	// Delete removes a stored file. Deleting an absent file is not an
	// error, and an empty filename is a no-op.
	Delete(filename string) error
}

// LocalStore keeps uploads in a directory on local disk.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed and returns a store
// rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save validates the upload against the allow-list and size cap, then
// writes it under a fresh opaque name. Both the declared MIME type and the
// sniffed content type must be allowed; the stored extension comes from
// the sniffed type, not the client.
func (s *LocalStore) Save(upload Upload) (string, error) {
	if upload.Size > MaxReceiptSize {
		return "", ErrFileTooLarge
	}
	if !allowedTypes[upload.DeclaredType] {
		return "", ErrUnsupportedType
	}

	// Cap the read too; the declared size is client-controlled.
	data, err := io.ReadAll(io.LimitReader(upload.Reader, MaxReceiptSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > MaxReceiptSize {
		return "", ErrFileTooLarge
	}

	detected := mimetype.Detect(data)
	if !allowedTypes[detected.String()] {
		return "", ErrUnsupportedType
	}

	filename := uuid.New().String() + detected.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return filename, nil
}

// Delete removes a stored file. Missing files are treated as success.
func (s *LocalStore) Delete(filename string) error {
	if filename == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filename, err)
	}
	return nil
}

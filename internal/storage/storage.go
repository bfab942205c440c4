// Package storage moves the attendance workbook between the bot and the
// place it lives: Google Drive in production, a local file or memory
// otherwise.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrConflict is returned by Upload when the remote revision moved since
// the caller downloaded it.
var ErrConflict = errors.New("remote file changed since download")

// Object is a downloaded file with the revision it was read at.
type Object struct {
	Data     []byte
	Revision string
}

// Store downloads and replaces one remote file. Upload replaces the whole
// content; a non-empty ifRevision makes it fail with ErrConflict when the
// current revision differs.
type Store interface {
	Download(ctx context.Context) (Object, error)
	Upload(ctx context.Context, data []byte, ifRevision string) error
}

func contentRevision(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

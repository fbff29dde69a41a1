package files

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Blob stores uploaded objects under a key.
type Blob interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// StorageKey returns a collision-free key that keeps the client's base name.
func StorageKey(now time.Time, name string) string {
	now = now.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%s-%s", now.Year(), int(now.Month()), now.Day(), uuid.NewString(), name)
}

// SanitizeName reduces a client-supplied file name to its base name.
// It returns "" when nothing usable remains.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	if strings.ContainsAny(name, "\x00") {
		return ""
	}
	return name
}

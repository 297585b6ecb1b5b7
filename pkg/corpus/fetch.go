package corpus

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/haivivi/crpairs/pkg/storage"
)

// Fetch copies the object name from store into dir and returns the local
// path. A local copy with the same size and modification time is reused.
func Fetch(ctx context.Context, store storage.FileStore, name, dir string) (string, error) {
	remote, err := store.Stat(ctx, name)
	if err != nil {
		return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
	}
	local := filepath.Join(dir, filepath.FromSlash(name))
	if fi, err := os.Stat(local); err == nil && fi.Size() == remote.Size && fi.ModTime().Equal(remote.ModTime) {
		return local, nil
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
	}

	r, err := store.Read(ctx, name)
	if err != nil {
		return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(local), ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
	}
	if !remote.ModTime.IsZero() {
		if err := os.Chtimes(tmp.Name(), remote.ModTime, remote.ModTime); err != nil {
			return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
		}
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", fmt.Errorf("corpus: fetch %s: %w", name, err)
	}
	return local, nil
}

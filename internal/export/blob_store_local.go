package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

const metadataSuffix = ".meta.json"

// LocalObjectMeta is the sidecar written next to every local object.
type LocalObjectMeta struct {
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
}

// LocalBlobStore keeps objects on a filesystem. Objects are written to a
// temporary file and renamed into place, so readers never see a partial one.
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) *LocalBlobStore {
	return &LocalBlobStore{root: root}
}

func (ls *LocalBlobStore) EnsureReady(_ context.Context) error {
	return os.MkdirAll(ls.root, 0755)
}

func (ls *LocalBlobStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(ls.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(ls.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("object path %q escapes the archive root", path)
	}
	return full, nil
}

func (ls *LocalBlobStore) Put(ctx context.Context, path string, body []byte, contentType string, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := ls.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}

	meta, err := json.Marshal(LocalObjectMeta{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(full+metadataSuffix, meta); err != nil {
		return err
	}
	return writeFileAtomic(full, body)
}

func writeFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, path)
}

package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLocalObject(ls *LocalBlobStore, path string) ([]byte, *LocalObjectMeta, error) {
	full, err := ls.resolve(path)
	if err != nil {
		return nil, nil, err
	}
	body, err := os.ReadFile(full)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(full + metadataSuffix)
	if err != nil {
		return nil, nil, err
	}
	var meta LocalObjectMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, err
	}
	return body, &meta, nil
}

func TestLocalBlobStore_PutAndGet(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archive")
	ls := NewLocalBlobStore(root)
	ctx := context.Background()

	require.NoError(t, ls.EnsureReady(ctx))
	require.NoError(t, ls.Put(ctx, "daily-exports/daily-export-2024-01-01.json", []byte(`{"a":1}`), "application/json", map[string]string{"purpose": "analytics"}))

	body, meta, err := readLocalObject(ls, "daily-exports/daily-export-2024-01-01.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))
	assert.Equal(t, "application/json", meta.ContentType)
	assert.Equal(t, "analytics", meta.Metadata["purpose"])

	_, err = os.Stat(filepath.Join(root, "daily-exports", "daily-export-2024-01-01.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalBlobStore_OverwriteReplacesObject(t *testing.T) {
	ls := NewLocalBlobStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, ls.Put(ctx, "x.json", []byte("first"), "application/json", nil))
	require.NoError(t, ls.Put(ctx, "x.json", []byte("second"), "application/json", nil))

	body, _, err := readLocalObject(ls, "x.json")
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))
}

func TestLocalBlobStore_PathCannotEscapeRoot(t *testing.T) {
	ls := NewLocalBlobStore(t.TempDir())

	require.NoError(t, ls.Put(context.Background(), "../../outside.json", []byte("x"), "application/json", nil))
	_, _, err := readLocalObject(ls, "outside.json")
	assert.NoError(t, err)
}

func TestLocalBlobStore_CancelledContext(t *testing.T) {
	ls := NewLocalBlobStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ls.Put(ctx, "x.json", []byte("x"), "application/json", nil), context.Canceled)
}

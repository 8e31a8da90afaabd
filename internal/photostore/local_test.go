package photostore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocal_SaveLoadDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := PhotoKey("sess1", "item1", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))

	data := []byte("\xff\xd8\xff\xe0 fake jpeg payload")
	require.NoError(t, store.Save(ctx, key, data, "image/jpeg"))

	got, contentType, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NotEmpty(t, contentType)

	require.NoError(t, store.Delete(ctx, key))
	_, _, err = store.Load(ctx, key)
	assert.ErrorIs(t, err, ErrPhotoNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), ErrPhotoNotFound)
}

func TestLocal_Overwrite(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a/b.jpg", []byte("v1"), "image/jpeg"))
	require.NoError(t, store.Save(ctx, "a/b.jpg", []byte("v2"), "image/jpeg"))

	got, _, err := store.Load(ctx, "a/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, store.Save(ctx, "../escape.jpg", []byte("x"), "image/jpeg"))
	_, _, err = store.Load(ctx, "/etc/passwd")
	assert.Error(t, err)
}

func TestPhotoKey(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-14/s1-i1.jpg", PhotoKey("s1", "i1", at))
}

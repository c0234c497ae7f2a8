package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetHeadDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.PutBytes(ctx, "2026/01/02/ab12cd34/article.json", []byte(`{"title":"x"}`), "application/json"))

	body, err := s.GetBytes(ctx, "2026/01/02/ab12cd34/article.json")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, string(body))

	info, err := s.Head(ctx, "2026/01/02/ab12cd34/article.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, int64(len(body)), info.Size)

	require.NoError(t, s.Delete(ctx, "2026/01/02/ab12cd34/article.json"))
	_, err = s.GetBytes(ctx, "2026/01/02/ab12cd34/article.json")
	assert.Error(t, err)
}

func TestMemoryStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutBytes(ctx, "a/1", []byte("x"), ""))
	require.NoError(t, s.PutBytes(ctx, "a/2", []byte("y"), ""))
	require.NoError(t, s.PutBytes(ctx, "b/1", []byte("z"), ""))

	var got []string
	err := s.ListPrefix(ctx, "a/", func(info ObjectInfo) error {
		got = append(got, info.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, got)
}

func TestMemoryStoreGetRangeClampsBounds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutBytes(ctx, "k", []byte("0123456789"), ""))

	got, err := s.GetRange(ctx, "k", 5, 100)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(got))
}

func TestMemoryStoreCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutBytes(ctx, "src", []byte("data"), "text/plain"))
	require.NoError(t, s.Copy(ctx, "src", "dst"))

	got, err := s.GetBytes(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

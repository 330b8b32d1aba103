package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("<urlset/>")
	uri, err := store.PutObject(context.Background(), "sitemaps/sitemap.xml", "application/xml", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://sitemaps/sitemap.xml", uri)

	payload[0] = '#'
	obj, ok := store.Object("sitemaps/sitemap.xml")
	require.True(t, ok)
	require.Equal(t, "<urlset/>", string(obj.Data))
	require.Equal(t, "application/xml", obj.ContentType)

	obj.Data[0] = '#'
	again, _ := store.Object("sitemaps/sitemap.xml")
	require.Equal(t, "<urlset/>", string(again.Data))

	_, ok = store.Object("missing")
	require.False(t, ok)
}

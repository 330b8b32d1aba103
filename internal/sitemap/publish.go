package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/JakeFAU/hvac-leadsite/internal/storage"
)

// ContentType is the media type sitemap documents are served and stored as.
const ContentType = "application/xml"

// ObjectName is the file name the sitemap is published under.
const ObjectName = "sitemap.xml"

// Publish renders entries and writes them to store under prefix/sitemap.xml,
// returning the object URI.
func Publish(ctx context.Context, store storage.BlobStore, prefix string, entries []Entry) (string, error) {
	var buf bytes.Buffer
	if err := WriteXML(&buf, entries); err != nil {
		return "", err
	}
	name := path.Join(prefix, ObjectName)
	uri, err := store.PutObject(ctx, name, ContentType, &buf)
	if err != nil {
		return "", fmt.Errorf("store sitemap: %w", err)
	}
	return uri, nil
}

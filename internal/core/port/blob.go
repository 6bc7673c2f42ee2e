package port

import "context"

// BlobStore keeps profile photos. Uploaded objects are publicly readable and
// addressed by the URL Upload returns.
type BlobStore interface {
	Upload(ctx context.Context, name string, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, name string) error
	NameFromURL(url string) string
}

package s3blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Writer implements domain.BlobWriter.
type Writer struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewWriter creates a Writer for the client's bucket. A non-empty prefix is
// prepended to every key.
func NewWriter(c *Client, prefix string) *Writer {
	return &Writer{
		client: c.s3,
		bucket: c.bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Put uploads data as a single PutObject request. Webhook bodies are small,
// so multipart uploads are never needed.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	key := w.key(path)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	return nil
}

func (w *Writer) key(path string) string {
	path = strings.TrimLeft(path, "/")
	if w.prefix == "" {
		return path
	}
	return w.prefix + "/" + path
}

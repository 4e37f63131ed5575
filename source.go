package phash

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Source is one image in a batch: an identifier plus either its encoded
// bytes or a lazy loader. Load takes precedence when both are set.
type Source struct {
	ID   string
	Data []byte
	Load func(ctx context.Context) ([]byte, error)
}

// BytesSource wraps an in-memory buffer.
func BytesSource(id string, data []byte) Source {
	return Source{ID: id, Data: data}
}

// FileSource reads path when the batch reaches it. The path is the identifier.
func FileSource(path string) Source {
	return Source{
		ID: path,
		Load: func(ctx context.Context) ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return os.ReadFile(path)
		},
	}
}

// URLSource downloads url with the engine's HTTP clients when the batch
// reaches it. The URL is the identifier.
func (e *Engine) URLSource(url string) Source {
	return Source{
		ID: url,
		Load: func(ctx context.Context) ([]byte, error) {
			r, err := e.Download(ctx, url, DownloadOpts{})
			if err != nil {
				return nil, err
			}
			return r.Data, nil
		},
	}
}

// bytes returns the encoded image, wrapping loader failures in ErrRead.
func (s Source) bytes(ctx context.Context) ([]byte, error) {
	if s.Load == nil {
		return s.Data, nil
	}
	data, err := s.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrRead) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, s.ID, err)
	}
	return data, nil
}

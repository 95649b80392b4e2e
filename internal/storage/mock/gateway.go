// Package mock provides an in-memory gateway for testing handlers and
// services without a real backend.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"sort"
	"sync"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/storage"
)

// Gateway implements storage.Gateway over in-memory maps.
type Gateway struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte // target key -> name -> content

	// Error simulation
	UploadErr   error
	ListErr     error
	DownloadErr error

	// Call tracking
	Uploads   []string
	Downloads []string
}

// NewGateway creates an empty in-memory gateway.
func NewGateway() *Gateway {
	return &Gateway{objects: make(map[string]map[string][]byte)}
}

func key(t storage.Target) string {
	return fmt.Sprintf("%d/%s/%s", t.Kind, t.Container, t.BasePath)
}

// Set seeds content for a name under the target.
func (g *Gateway) Set(t storage.Target, name string, content []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bucket(t)[name] = content
}

// Content returns the stored bytes for a name, if present.
func (g *Gateway) Content(t storage.Target, name string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.bucket(t)[name]
	return b, ok
}

func (g *Gateway) bucket(t storage.Target) map[string][]byte {
	k := key(t)
	if g.objects[k] == nil {
		g.objects[k] = make(map[string][]byte)
	}
	return g.objects[k]
}

func (g *Gateway) Upload(ctx context.Context, t storage.Target, obj storage.Object, policy storage.ConflictPolicy) error {
	if g.UploadErr != nil {
		return g.UploadErr
	}

	content, err := io.ReadAll(obj.Content)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	bucket := g.bucket(t)
	if policy == storage.FailIfExists {
		if _, exists := bucket[obj.Name]; exists {
			return apperr.New(apperr.KindAlreadyExists, fmt.Sprintf("file %s already exists", obj.Name))
		}
	}
	bucket[obj.Name] = content
	g.Uploads = append(g.Uploads, obj.Name)
	return nil
}

func (g *Gateway) List(ctx context.Context, t storage.Target) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if g.ListErr != nil {
			yield("", g.ListErr)
			return
		}

		g.mu.Lock()
		names := make([]string, 0, len(g.bucket(t)))
		for name := range g.bucket(t) {
			names = append(names, name)
		}
		g.mu.Unlock()

		sort.Strings(names)
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

func (g *Gateway) Download(ctx context.Context, t storage.Target, name string) (io.ReadCloser, int64, error) {
	if g.DownloadErr != nil {
		return nil, 0, g.DownloadErr
	}

	g.mu.Lock()
	content, ok := g.bucket(t)[name]
	g.Downloads = append(g.Downloads, name)
	g.mu.Unlock()

	if !ok {
		return nil, 0, apperr.New(apperr.KindNotFound, fmt.Sprintf("file %s not found", name))
	}
	return io.NopCloser(bytes.NewReader(content)), int64(len(content)), nil
}

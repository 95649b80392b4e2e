package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/credential"
)

// ShareBackend implements the hierarchical variant of the gateway over a
// network file share reached through its OS mount point. The filesystem is
// the share's native API, so FailIfExists gets a real atomic primitive:
// O_CREATE|O_EXCL at the final name.
type ShareBackend struct {
	root     string
	provider credential.Provider
}

// NewShareBackend creates a backend rooted at the share's mount point.
func NewShareBackend(mountPath string, provider credential.Provider) (*ShareBackend, error) {
	info, err := os.Stat(mountPath)
	if err != nil {
		return nil, fmt.Errorf("share mount %s: %w", mountPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("share mount %s is not a directory", mountPath)
	}
	return &ShareBackend{root: mountPath, provider: provider}, nil
}

func (s *ShareBackend) Upload(ctx context.Context, target Target, obj Object, conflictPolicy ConflictPolicy) error {
	if _, err := s.provider.Acquire(ctx); err != nil {
		return err
	}

	path, err := s.resolve(target, obj.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return wrapBackendErr(ctx, "failed to prepare share directory", err)
	}

	if conflictPolicy == FailIfExists {
		return s.writeExclusive(ctx, path, obj)
	}
	return s.writeReplacing(ctx, path, obj)
}

// writeExclusive creates the file atomically at its final name; a partial
// write is removed so it is never observed as committed.
func (s *ShareBackend) writeExclusive(ctx context.Context, path string, obj Object) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return apperr.New(apperr.KindAlreadyExists,
				fmt.Sprintf("file %s already exists", filepath.Base(path)))
		}
		return wrapBackendErr(ctx, "failed to create file on share", err)
	}

	if err := copyAll(ctx, f, obj.Content); err != nil {
		f.Close()
		os.Remove(path)
		return wrapBackendErr(ctx, "failed to write file to share", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return wrapBackendErr(ctx, "failed to write file to share", err)
	}
	return nil
}

// writeReplacing streams to a temporary name and renames over the target, so
// readers see either the old content or the new, never a partial write.
func (s *ShareBackend) writeReplacing(ctx context.Context, path string, obj Object) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return wrapBackendErr(ctx, "failed to create file on share", err)
	}
	defer os.Remove(tmp.Name())

	if err := copyAll(ctx, tmp, obj.Content); err != nil {
		tmp.Close()
		return wrapBackendErr(ctx, "failed to write file to share", err)
	}
	if err := tmp.Close(); err != nil {
		return wrapBackendErr(ctx, "failed to write file to share", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return wrapBackendErr(ctx, "failed to write file to share", err)
	}
	return nil
}

func (s *ShareBackend) List(ctx context.Context, target Target) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if _, err := s.provider.Acquire(ctx); err != nil {
			yield("", err)
			return
		}

		dir, err := s.resolve(target, ".")
		if err != nil {
			yield("", err)
			return
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return // empty target
			}
			yield("", wrapBackendErr(ctx, "failed to list share", err))
			return
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				yield("", wrapBackendErr(ctx, "failed to list share", ctx.Err()))
				return
			}
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if !yield(entry.Name(), nil) {
				return
			}
		}
	}
}

func (s *ShareBackend) Download(ctx context.Context, target Target, name string) (io.ReadCloser, int64, error) {
	if _, err := s.provider.Acquire(ctx); err != nil {
		return nil, 0, err
	}

	path, err := s.resolve(target, name)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, apperr.New(apperr.KindNotFound, fmt.Sprintf("file %s not found", name))
		}
		return nil, 0, wrapBackendErr(ctx, "failed to open file on share", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, wrapBackendErr(ctx, "failed to open file on share", err)
	}
	return f, info.Size(), nil
}

// resolve joins the target's base path and name under the mount root and
// rejects anything that escapes it. Names arrive sanitized, but the mount is
// shared state and the containment check is the backend's own invariant.
func (s *ShareBackend) resolve(target Target, name string) (string, error) {
	path := filepath.Clean(filepath.Join(s.root, target.BasePath, name))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", apperr.New(apperr.KindBadName, "filename is not valid")
	}
	return path, nil
}

// copyAll streams src to dst, honoring cancellation between chunks.
func copyAll(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 128<<10)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

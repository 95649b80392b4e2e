// Package storage unifies the object-store and file-share backends behind a
// single upload/list/download contract with one conflict policy.
//
// Under FailIfExists the existence check before the write is best-effort:
// it is not linearizable across processes, and two concurrent uploads of the
// same name may both observe "absent" and both write (last writer wins).
// Backends that expose a native conditional-write primitive (Azure ETag
// access conditions, O_EXCL on the share mount) use it and do give the
// atomic guarantee.
package storage

import (
	"context"
	"io"
	"iter"

	"github.com/supriyameruva/filegate/internal/apperr"
)

// BackendKind selects the backend variant a Target addresses.
type BackendKind int

const (
	ObjectStore BackendKind = iota
	Share
)

// ConflictPolicy is the rule applied when an upload hits an existing name.
type ConflictPolicy int

const (
	// FailIfExists rejects the upload without mutating storage when the
	// name is already present.
	FailIfExists ConflictPolicy = iota
	// Overwrite replaces any prior content at the name.
	Overwrite
)

// Target names a storage location. Immutable after construction.
type Target struct {
	Kind      BackendKind
	Container string // container (object store) or share name
	BasePath  string // directory inside the share; ignored by object stores
}

// Object is a named byte stream to store. Size may be -1 when unknown.
type Object struct {
	Name    string
	Content io.Reader
	Size    int64
}

// Gateway is the storage contract both backends satisfy.
//
// List is lazy and restartable: ranging over the returned sequence again
// re-enumerates from the start. Ordering is backend-defined and not stable
// across calls. Download returns a stream the caller must close; the
// gateway never buffers whole objects and performs no silent retries.
type Gateway interface {
	Upload(ctx context.Context, target Target, obj Object, policy ConflictPolicy) error
	List(ctx context.Context, target Target) iter.Seq2[string, error]
	Download(ctx context.Context, target Target, name string) (io.ReadCloser, int64, error)
}

// Mux routes operations to the backend matching the target's kind.
// Add a backend by adding a variant here, not by duplicating handlers.
type Mux struct {
	object Gateway
	share  Gateway
}

// NewMux creates a gateway over the two backend variants.
func NewMux(object, share Gateway) *Mux {
	return &Mux{object: object, share: share}
}

func (m *Mux) backend(target Target) (Gateway, error) {
	switch target.Kind {
	case ObjectStore:
		if m.object == nil {
			return nil, apperr.New(apperr.KindInvalidConfig, "object store backend is not configured")
		}
		return m.object, nil
	case Share:
		if m.share == nil {
			return nil, apperr.New(apperr.KindInvalidConfig, "file share backend is not configured")
		}
		return m.share, nil
	}
	return nil, apperr.New(apperr.KindInvalidConfig, "unknown backend kind")
}

func (m *Mux) Upload(ctx context.Context, target Target, obj Object, policy ConflictPolicy) error {
	b, err := m.backend(target)
	if err != nil {
		return err
	}
	return b.Upload(ctx, target, obj, policy)
}

func (m *Mux) List(ctx context.Context, target Target) iter.Seq2[string, error] {
	b, err := m.backend(target)
	if err != nil {
		return func(yield func(string, error) bool) { yield("", err) }
	}
	return b.List(ctx, target)
}

func (m *Mux) Download(ctx context.Context, target Target, name string) (io.ReadCloser, int64, error) {
	b, err := m.backend(target)
	if err != nil {
		return nil, 0, err
	}
	return b.Download(ctx, target, name)
}

// wrapBackendErr classifies an SDK or I/O failure, distinguishing timeouts
// (safe for the caller to retry) from other transport failures. msg becomes
// the user-visible text, so it must never carry credential material.
func wrapBackendErr(ctx context.Context, msg string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return apperr.Wrap(apperr.KindBackendTimeout, msg+": backend timed out", err)
	}
	return apperr.Wrap(apperr.KindBackendUnavailable, msg, err)
}

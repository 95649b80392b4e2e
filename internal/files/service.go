// Package files contains the business logic and HTTP handlers for storing,
// listing and retrieving named byte objects through the storage gateway.
package files

import (
	"context"
	"io"
	"time"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/storage"
	"github.com/supriyameruva/filegate/internal/validate"
)

// Service orchestrates one operation per request: validate the name, then
// run the gateway call under the configured backend deadline. Credential
// acquisition happens inside the gateway backends, bound to the request
// context (which carries the caller's session, if any).
type Service struct {
	gateway storage.Gateway
	allowed map[string]bool
	policy  storage.ConflictPolicy
	timeout time.Duration

	objectTarget storage.Target
	shareTarget  storage.Target
}

// NewService creates a files service over the gateway.
func NewService(gateway storage.Gateway, allowed map[string]bool, overwrite bool,
	timeout time.Duration, objectTarget, shareTarget storage.Target) *Service {
	policy := storage.FailIfExists
	if overwrite {
		policy = storage.Overwrite
	}
	return &Service{
		gateway:      gateway,
		allowed:      allowed,
		policy:       policy,
		timeout:      timeout,
		objectTarget: objectTarget,
		shareTarget:  shareTarget,
	}
}

func (s *Service) target(kind storage.BackendKind) storage.Target {
	if kind == storage.Share {
		return s.shareTarget
	}
	return s.objectTarget
}

// Upload validates rawName and streams content to the backend. It returns
// the sanitized name the object was stored under.
func (s *Service) Upload(ctx context.Context, kind storage.BackendKind, rawName string, content io.Reader, size int64) (string, error) {
	file, err := validate.FileName(rawName, s.allowed)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obj := storage.Object{Name: file.Name, Content: content, Size: size}
	if err := s.gateway.Upload(ctx, s.target(kind), obj, s.policy); err != nil {
		return "", err
	}
	return file.Name, nil
}

// List returns the names stored under the backend's target.
func (s *Service) List(ctx context.Context, kind storage.BackendKind) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names := []string{}
	for name, err := range s.gateway.List(ctx, s.target(kind)) {
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Download opens a stream for the named object. Invalid names surface as
// not-found: such a name can never have been stored, and the distinction
// would only map to the same outcome for the caller.
//
// No deadline wraps the returned stream; cancelling the request context
// closes the underlying connection instead.
func (s *Service) Download(ctx context.Context, kind storage.BackendKind, rawName string) (io.ReadCloser, int64, string, error) {
	file, err := validate.FileName(rawName, s.allowed)
	if err != nil {
		return nil, 0, "", apperr.New(apperr.KindNotFound, "file not found")
	}

	rc, size, err := s.gateway.Download(ctx, s.target(kind), file.Name)
	if err != nil {
		return nil, 0, "", err
	}
	return rc, size, file.Name, nil
}

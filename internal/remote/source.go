package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"killfeed-tracker/internal/domain"
)

// ErrorKind classifies a transport failure. NotFound is the only kind the
// poller treats as permanent; everything else is retried on the next tick.
type ErrorKind int

const (
	KindUnreachable ErrorKind = iota
	KindNotFound
	KindPermissionDenied
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "unreachable"
	}
}

// TransportError wraps a remote-source failure with its kind.
type TransportError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the next poll should attempt the same call again.
func (e *TransportError) Retryable() bool { return e.Kind != KindNotFound }

// KindOf returns the transport error kind, defaulting to Unreachable for
// errors that did not originate in this package.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnreachable
}

// FileInfo describes one remote log file.
type FileInfo struct {
	ID   string
	Size int64
}

// Source is the remote file transport the poller reads logs through. Every
// call may fail; the connection is never assumed warm.
type Source interface {
	// ListFiles returns descriptors for the log files under the server's
	// configured log directories.
	ListFiles(ctx context.Context, srv *domain.Server) ([]FileInfo, error)

	// ReadFrom opens a stream over the file's bytes starting at offset.
	// The caller owns the returned reader and must close it.
	ReadFrom(ctx context.Context, srv *domain.Server, fileID string, offset int64) (io.ReadCloser, error)
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Kind is the stable error taxonomy exposed by the core. Provider and tool
// errors are mapped onto it at the adapter boundary.
type Kind string

const (
	KindAgeRestricted     Kind = "age_restricted"
	KindPrivate           Kind = "private"
	KindUnavailable       Kind = "unavailable"
	KindMalformedLink     Kind = "malformed_link"
	KindNoStreamAvailable Kind = "no_stream_available"
	KindMuxFailed         Kind = "mux_failed"
	KindMuxTimeout        Kind = "mux_timeout"
	KindUnexpected        Kind = "unexpected"
	// KindFatal aborts a whole run instead of a single item.
	KindFatal Kind = "fatal"
)

type Error struct {
	Kind   Kind
	Detail string
	Link   string
	Code   int // exit code for KindMuxFailed
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	switch {
	case e.Kind == KindMuxFailed:
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.Code)
	case e.Detail != "":
		msg = msg + ": " + e.Detail
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, domain.ErrPrivate).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Detail == "" && t.Err == nil && t.Code == 0
}

var (
	ErrAgeRestricted     = &Error{Kind: KindAgeRestricted}
	ErrPrivate           = &Error{Kind: KindPrivate}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
	ErrMalformedLink     = &Error{Kind: KindMalformedLink}
	ErrNoStreamAvailable = &Error{Kind: KindNoStreamAvailable}
	ErrMuxFailed         = &Error{Kind: KindMuxFailed}
	ErrMuxTimeout        = &Error{Kind: KindMuxTimeout}
	ErrFatal             = &Error{Kind: KindFatal}
)

func NewError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func Unavailable(link, detail string, err error) *Error {
	return &Error{Kind: KindUnavailable, Link: link, Detail: detail, Err: err}
}

func MuxFailed(code int, err error) *Error {
	return &Error{Kind: KindMuxFailed, Code: code, Err: err}
}

func Fatal(err error) *Error {
	return &Error{Kind: KindFatal, Err: err}
}

// KindOf classifies any error. Errors that carry no *Error are unexpected,
// except for system faults that make further work pointless.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if IsFatal(err) {
		return KindFatal
	}
	return KindUnexpected
}

// IsFatal reports faults that should abort a whole run: a full disk, a
// read-only or forbidden working directory, or a cancelled run. Classified
// errors are fatal only when their kind says so.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == KindFatal
	}
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EROFS) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Message renders the user-facing text for an error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if !errors.As(err, &de) {
		return "Unexpected error: " + err.Error()
	}
	switch de.Kind {
	case KindAgeRestricted:
		return "The video is age restricted."
	case KindPrivate:
		return "The video is private."
	case KindUnavailable:
		if de.Link != "" {
			return fmt.Sprintf("%s : %s", de.Link, de.Detail)
		}
		return "The video is unavailable: " + de.Detail
	case KindMalformedLink:
		return "The link is not in a valid format. Please try again."
	case KindNoStreamAvailable:
		return "No suitable video or audio stream was found."
	case KindMuxFailed:
		return fmt.Sprintf("Merging video and audio failed (exit code %d).", de.Code)
	case KindMuxTimeout:
		return "Merging video and audio timed out."
	case KindFatal:
		return "The download was aborted: " + de.Error()
	}
	return "Unexpected error: " + de.Error()
}

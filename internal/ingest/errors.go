package ingest

import (
	"errors"
	"fmt"
)

// Class groups kinds by the pipeline stage that produces them.
type Class string

const (
	ClassFetch         Class = "fetch"
	ClassExtraction    Class = "extraction"
	ClassNormalization Class = "normalization"
	ClassReconcile     Class = "reconcile"
	ClassRun           Class = "run"
)

// Kind identifies a failure. Kinds are themselves errors so they can be
// used as errors.Is targets.
type Kind string

const (
	KindTransient         Kind = "transient"
	KindNotFound          Kind = "not_found"
	KindRenderTimeout     Kind = "render_timeout"
	KindBrowserCrash      Kind = "browser_crash"
	KindMalformedDocument Kind = "malformed_document"
	KindUnparseableDate   Kind = "unparseable_date"
	KindMissingTitle      Kind = "missing_title"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindTimeout           Kind = "timeout"
	KindCancelled         Kind = "cancelled"
)

func (k Kind) Error() string { return string(k) }

func (k Kind) Class() Class {
	switch k {
	case KindTransient, KindNotFound, KindRenderTimeout, KindBrowserCrash:
		return ClassFetch
	case KindMalformedDocument:
		return ClassExtraction
	case KindUnparseableDate, KindMissingTitle:
		return ClassNormalization
	case KindStoreUnavailable:
		return ClassReconcile
	default:
		return ClassRun
	}
}

// Transient reports whether a later run could plausibly succeed without a
// configuration change. NotFound and MalformedDocument usually mean a venue's
// URL or markup changed.
func (k Kind) Transient() bool {
	switch k {
	case KindTransient, KindRenderTimeout, KindBrowserCrash, KindStoreUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is the single error type produced by the pipeline.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Class() Class { return e.Kind.Class() }

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := fmt.Sprintf("%s error (%s)", e.Kind.Class(), e.Kind)
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", prefix, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", prefix, e.Err)
	}
	return prefix
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

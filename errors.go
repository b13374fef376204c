// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cardzip

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind discriminates the failure classes reported by this package.
type ErrorKind int

const (
	// KindLimit is a resource limit violation, detected either on the declared
	// sizes of the central directory or on the bytes actually produced.
	KindLimit ErrorKind = iota + 1

	// KindParse is structurally invalid input: corrupt or inconsistent zip
	// structures, unsupported compression methods, checksum mismatches.
	KindParse

	// KindPathTraversal is an entry name that would escape the extraction root.
	KindPathTraversal
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindLimit:
		return "limit"
	case KindParse:
		return "parse"
	case KindPathTraversal:
		return "path-traversal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Limit names which of the configured limits was crossed.
type Limit string

const (
	LimitMaxFiles     Limit = "max-files"
	LimitMaxFileSize  Limit = "max-file-size"
	LimitMaxTotalSize Limit = "max-total-size"
)

// Phase tells whether a limit tripped on declared metadata or on produced bytes.
type Phase string

const (
	PhasePreflight Phase = "preflight"
	PhaseExtract   Phase = "extract"
)

var (
	// ErrLimitExceeded matches every error of kind [KindLimit] with errors.Is.
	ErrLimitExceeded = errors.New("zip limit exceeded")

	// ErrMalformed matches every error of kind [KindParse] with errors.Is.
	ErrMalformed = errors.New("malformed zip")

	// ErrPathTraversal matches every error of kind [KindPathTraversal] with errors.Is.
	ErrPathTraversal = errors.New("path traversal detected")
)

// Error is the single error value returned by the locator, the preflight sizer,
// the extractor and the disk target. Kind selects which of the detail fields
// are meaningful.
type Error struct {
	Kind ErrorKind

	// Op is the operation that failed, e.g. "preflight" or "extract".
	Op string

	// limit details (KindLimit)
	Limit        Limit
	Phase        Phase
	Entry        string
	EntrySize    int64
	MaxEntrySize int64
	TotalSize    int64
	MaxSize      int64
	Files        int64
	MaxFiles     int64

	// Path is the offending path (KindPathTraversal) or entry (KindParse).
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// Error renders a message that names the tripped limit and the entry.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch e.Kind {
	case KindLimit:
		if e.Phase != "" && string(e.Phase) != e.Op {
			b.WriteString(string(e.Phase))
			b.WriteString(": ")
		}
		switch e.Limit {
		case LimitMaxFiles:
			fmt.Fprintf(&b, "entry count %d exceeds maximum of %d", e.Files, e.MaxFiles)
		case LimitMaxFileSize:
			fmt.Fprintf(&b, "entry %q size %d exceeds maximum of %d", e.Entry, e.EntrySize, e.MaxEntrySize)
		case LimitMaxTotalSize:
			fmt.Fprintf(&b, "total size %d exceeds maximum of %d", e.TotalSize, e.MaxSize)
			if e.Entry != "" {
				fmt.Fprintf(&b, " (at entry %q)", e.Entry)
			}
		default:
			b.WriteString(ErrLimitExceeded.Error())
		}
	case KindParse:
		b.WriteString(ErrMalformed.Error())
		if e.Path != "" {
			fmt.Fprintf(&b, " (entry %q)", e.Path)
		}
	case KindPathTraversal:
		fmt.Fprintf(&b, "%s: %q", ErrPathTraversal.Error(), e.Path)
	default:
		b.WriteString("unknown error")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the sentinel of the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Kind {
	case KindLimit:
		errs = append(errs, ErrLimitExceeded)
	case KindParse:
		errs = append(errs, ErrMalformed)
	case KindPathTraversal:
		errs = append(errs, ErrPathTraversal)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// parseError returns a [KindParse] error for op with a formatted cause.
func parseError(op string, entry string, format string, args ...any) *Error {
	return &Error{Kind: KindParse, Op: op, Path: entry, Err: fmt.Errorf(format, args...)}
}

// traversalError returns a [KindPathTraversal] error for path.
func traversalError(op string, path string, cause error) *Error {
	return &Error{Kind: KindPathTraversal, Op: op, Path: path, Err: cause}
}

// AsError returns the [*Error] in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

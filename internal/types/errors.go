package types

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

type ErrorTag string

const (
	// edit requests inconsistent with the tree they are applied to
	EditRangeErrorTag  ErrorTag = "EditRangeError"
	EditTextErrorTag   ErrorTag = "EditTextError"
	EditLengthErrorTag ErrorTag = "EditLengthError"

	ConfigErrorTag          ErrorTag = "ConfigError"
	DecodeErrorTag          ErrorTag = "DecodeError"
	SessionNotFoundErrorTag ErrorTag = "SessionNotFoundError"
	TextTooLargeErrorTag    ErrorTag = "TextTooLargeError"
)

// Detailer is an error that can describe itself as a JSON friendly value.
type Detailer interface {
	error
	Detail() any
}

type Error struct {
	Tag   ErrorTag
	Err   error
	Extra map[string]any
}

var _ Detailer = (*Error)(nil)

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Tag)
	}

	var b strings.Builder
	b.WriteString(string(e.Tag))
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Detail() any {
	tags := []any{e.Tag}
	for err := errors.Unwrap(error(e)); err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*Error); ok {
			tags = append(tags, e.Tag)
		}
	}

	o := map[string]any{
		"tags": tags,
	}
	if e.Err != nil {
		o["message"] = e.Err.Error()
	}
	if len(e.Extra) != 0 {
		o = lo.Assign(o, e.Extra)
	}
	return o
}

// IsTag reports whether any *Error in err's chain carries tag.
func IsTag(err error, tag ErrorTag) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*Error); ok && e.Tag == tag {
			return true
		}
	}
	return false
}

package bitfile

import "fmt"

// UnsupportedTypeError is returned for a type tag the codec cannot handle.
// Registers and channels with such types are dropped from the Bitfile.
type UnsupportedTypeError struct {
	Tag    string
	Detail string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("bitfile: unsupported type %q: %s", e.Tag, e.Detail)
	}
	return fmt.Sprintf("bitfile: unsupported type %q", e.Tag)
}

// MalformedDocumentError is returned when a required node is missing or
// cannot be parsed. It aborts parsing of the whole document.
type MalformedDocumentError struct {
	Field string
	Err   error
}

func (e *MalformedDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bitfile: malformed document: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("bitfile: malformed document: missing %s", e.Field)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

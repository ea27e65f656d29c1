package fpgatype

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFPGA/pkg/value"
)

// ErrTypeMismatch is wrapped by every PackError.
var ErrTypeMismatch = errors.New("fpgatype: type mismatch")

// DuplicateMemberNameError is returned when a cluster declares two members
// with the same name.
type DuplicateMemberNameError struct {
	Cluster string
	Member  string
}

func (e *DuplicateMemberNameError) Error() string {
	return fmt.Sprintf("fpgatype: cluster %q contains multiple members named %q", e.Cluster, e.Member)
}

// PackError reports a value that does not fit the type it is packed as.
type PackError struct {
	Path   string // dotted member path, with [i] for array elements
	Type   *Type
	Got    value.Kind
	Detail string
}

func (e *PackError) Error() string {
	path := e.Path
	if path == "" {
		path = "value"
	}
	msg := fmt.Sprintf("fpgatype: pack %s: expected %s, got %s", path, e.Type, e.Got)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg + ": type mismatch"
}

func (e *PackError) Unwrap() error {
	return ErrTypeMismatch
}

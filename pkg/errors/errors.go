// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package errors

import (
	stdliberrors "errors"

	"github.com/antimetal/erebusd/pkg/property"
)

var (
	ErrUnsupported = stdliberrors.ErrUnsupported

	As     = stdliberrors.As
	Is     = stdliberrors.Is
	Join   = stdliberrors.Join
	New    = stdliberrors.New
	Unwrap = stdliberrors.Unwrap
)

func NewRetryable(text string) RetryableError {
	return &retryableError{text}
}

func Retryable(err error) bool {
	var rerr RetryableError
	return As(err, &rerr)
}

type RetryableError interface {
	error
	Retryable()
}

type retryableError struct {
	text string
}

func (r *retryableError) Error() string {
	return r.text
}

func (r *retryableError) Retryable() {}

// StructuredError is an application error carrying a property bag of
// diagnostic context, mirroring Er::Exception's attached property list
// (erebus_service.cxx's marshalException(reply, const Er::Exception&)).
// A plain error (one that does not implement this interface) is marshalled
// with only its Error() text, mirroring the std::exception overload.
type StructuredError interface {
	error
	Properties() property.Bag
}

// NewStructured builds a StructuredError from a message and a property bag.
func NewStructured(text string, props property.Bag) StructuredError {
	return &structuredError{text: text, props: props}
}

type structuredError struct {
	text string
	props property.Bag
}

func (e *structuredError) Error() string           { return e.text }
func (e *structuredError) Properties() property.Bag { return e.props }

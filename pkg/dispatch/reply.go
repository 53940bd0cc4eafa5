// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package dispatch

import (
	"github.com/antimetal/erebusd/pkg/property"
	"google.golang.org/grpc/codes"
)

// Exception is the in-band application-level error shape, equivalent to
// erebus::ServiceReply's exception field: a message plus an optional
// property bag of diagnostic context.
type Exception struct {
	Message    string
	Properties property.Bag
}

// Reply is the dispatcher's answer to one unary call, or the terminal
// answer to one streaming call. Code is the transport-level gRPC status;
// per spec.md §7, only cancellation, lookup failure, and begin-stream
// failure set a non-OK Code. A service-level error is always carried OK
// at the transport layer, in-band via Exception.
type Reply struct {
	Code      codes.Code
	Props     property.Bag
	Exception *Exception
}

// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package dispatch

import (
	"context"
	"fmt"

	apierrors "github.com/antimetal/erebusd/pkg/errors"
	"github.com/antimetal/erebusd/pkg/property"
	"github.com/go-logr/logr"
	"google.golang.org/grpc/codes"
)

// Dispatcher turns a request name into a call against a registered
// Service, producing the unary and streaming reply shapes described by
// spec.md §4.7, grounded on erebus_service.cxx's GenericRpc/GenericStream.
type Dispatcher struct {
	registry *Registry
	log      logr.Logger
}

// NewDispatcher wraps a Registry with the dispatcher's reactor logic.
func NewDispatcher(registry *Registry, log logr.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log.WithName("dispatch")}
}

// Unary runs the unary RPC path: check cancellation, look up the service,
// call Request, and marshal either the reply bag or the caught error.
// Only cancellation and an unknown request name are reported as a
// non-OK transport status; a service-level error is always OK at the
// transport layer with the error traveling in reply.Exception.
func (d *Dispatcher) Unary(ctx context.Context, requestName string, args property.Bag, sessionID uint64) Reply {
	if err := ctx.Err(); err != nil {
		d.log.V(1).Info("request cancelled", "request", requestName)
		return Reply{Code: codes.Cancelled}
	}

	svc, ok := d.registry.find(requestName)
	if !ok {
		msg := fmt.Sprintf("no handlers for %q", requestName)
		d.log.Error(nil, msg, "request", requestName)
		return Reply{Code: codes.Unavailable, Exception: &Exception{Message: msg}}
	}

	result, err := svc.Request(requestName, args, sessionID)
	if err != nil {
		d.log.Error(err, "request failed", "request", requestName)
		return Reply{Code: codes.OK, Exception: toException(err)}
	}

	return Reply{Code: codes.OK, Props: result}
}

// Stream runs the server-streaming RPC path: look up the service, call
// BeginStream, then loop Next, invoking emit for each non-empty bag. It
// finishes OK when a Next call returns an empty bag. EndStream always
// runs once BeginStream has succeeded, whether the loop finished, failed,
// or was cancelled mid-flight.
//
// Only a missing handler and a BeginStream failure are transport-level
// errors (Unavailable/Internal), matching GenericStream's Begin()-phase
// grpc::Status(INTERNAL, ...). Once the stream is running, a Next or
// emit failure finishes OK with the error carried in-band via
// Reply.Exception, the same way Unary carries a service-level error —
// the caller writes that terminal Reply as the stream's last message
// rather than treating it as a transport failure.
func (d *Dispatcher) Stream(ctx context.Context, requestName string, args property.Bag, sessionID uint64, emit func(property.Bag) error) Reply {
	if err := ctx.Err(); err != nil {
		d.log.V(1).Info("stream cancelled before start", "request", requestName)
		return Reply{Code: codes.Cancelled}
	}

	svc, ok := d.registry.find(requestName)
	if !ok {
		msg := fmt.Sprintf("no handlers for %q", requestName)
		d.log.Error(nil, msg, "request", requestName)
		return Reply{Code: codes.Unavailable, Exception: &Exception{Message: msg}}
	}

	streamID, err := svc.BeginStream(requestName, args, sessionID)
	if err != nil {
		d.log.Error(err, "begin stream failed", "request", requestName)
		return Reply{Code: codes.Internal, Exception: toException(err)}
	}
	defer func() {
		if err := svc.EndStream(sessionID, streamID); err != nil {
			d.log.Error(err, "end stream failed", "request", requestName)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			d.log.V(1).Info("stream cancelled", "request", requestName)
			return Reply{Code: codes.Cancelled}
		}

		bag, err := svc.Next(sessionID, streamID)
		if err != nil {
			d.log.Error(err, "stream next failed", "request", requestName)
			return Reply{Code: codes.OK, Exception: toException(err)}
		}
		if len(bag) == 0 {
			return Reply{Code: codes.OK}
		}
		if err := emit(bag); err != nil {
			d.log.Error(err, "stream emit failed", "request", requestName)
			return Reply{Code: codes.OK, Exception: toException(err)}
		}
	}
}

// toException marshals an error into the in-band Exception shape,
// attaching its property bag when it implements errors.StructuredError
// (mirrors marshalException's Er::Exception overload); otherwise only its
// message travels (the std::exception overload).
func toException(err error) *Exception {
	exc := &Exception{Message: err.Error()}
	var structured apierrors.StructuredError
	if apierrors.As(err, &structured) {
		exc.Properties = structured.Properties()
	}
	return exc
}

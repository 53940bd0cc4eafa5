// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package dispatch implements the service dispatcher (C7): a request-name
// keyed service registry plus the unary and server-streaming RPC reactor
// shapes, modeled on erebus_service.cxx's GenericRpc/GenericStream and
// processlistservice.cxx's IService contract.
package dispatch

import "github.com/antimetal/erebusd/pkg/property"

// Service is the contract a request handler registers under a request
// name. It mirrors Er::Server::IService: a unary request/reply call, and
// a three-part streaming call (begin, pull-next, end) keyed by the
// session that owns the stream.
type Service interface {
	// Request answers a single unary call.
	Request(requestName string, args property.Bag, sessionID uint64) (property.Bag, error)

	// BeginStream opens a server-streaming call, returning the id the
	// caller must pass to Next and EndStream.
	BeginStream(requestName string, args property.Bag, sessionID uint64) (streamID uint64, err error)

	// Next pulls the stream's next bag. An empty bag (len(bag) == 0)
	// signals end-of-stream.
	Next(sessionID, streamID uint64) (property.Bag, error)

	// EndStream releases a stream early. The dispatcher always calls
	// this once a streaming call returns, whether it ran to completion
	// or was aborted.
	EndStream(sessionID, streamID uint64) error
}

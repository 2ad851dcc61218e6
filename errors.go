// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Errors surfaced to callers. Fatal errors close the connection and fail
// every outstanding waiter; the others leave the connection usable.
var (
	// ErrProtocol is a fatal violation of the wire protocol.
	ErrProtocol = errors.New("protocol error")

	// ErrDataType is a client-side column type problem: merge mismatch,
	// enum name not in the map, descriptor parse failure.
	ErrDataType = errors.New("data type error")

	// ErrClosed is returned for operations on a closed connection and is
	// the failure delivered to waiters when the transport goes away.
	ErrClosed = errors.New("connection closed")

	// ErrNotReady is returned when a command is issued while another one
	// is still outstanding. The connection stays usable.
	ErrNotReady = errors.New("connection not ready: operation outstanding")

	// ErrConnectTimeout is a fatal timeout during TCP connect or handshake.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrReadTimeout is a fatal idle-read timeout while a response was due.
	ErrReadTimeout = errors.New("read timeout")

	// ErrQueryTimeout is a fatal per-operation deadline. The connection is
	// closed because the protocol has no targeted cancellation.
	ErrQueryTimeout = errors.New("query timeout")
)

var (
	errMalformedString = errors.Wrap(ErrProtocol, "string length out of bounds")
	errVarIntTooLong   = errors.Wrap(ErrProtocol, "varint not terminated after 9 bytes")
)

// errIncomplete signals that the receive buffer does not yet hold a whole
// frame. It never escapes the decoder.
var errIncomplete = errors.New("incomplete frame")

// Exception is an error reported by the server. It is not fatal: the
// connection returns to ready and remains usable.
type Exception struct {
	Code       uint32
	Name       string
	Message    string
	StackTrace string
	Nested     *Exception
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// Unwrap exposes the nested server exception chain to errors.Is/As.
func (e *Exception) Unwrap() error {
	if e.Nested == nil {
		return nil
	}
	return e.Nested
}

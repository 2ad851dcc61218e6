// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

type connState uint8

const (
	stateNotConnected connState = iota
	stateConnecting
	stateReady
	stateAwaitingQueryResult
	stateAwaitingEndOfStream
	stateAwaitingToSendData
	stateAwaitingConfirmation
	stateAwaitingPong
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateNotConnected:
		return "not connected"
	case stateConnecting:
		return "connecting"
	case stateReady:
		return "ready"
	case stateAwaitingQueryResult:
		return "awaiting query result"
	case stateAwaitingEndOfStream:
		return "awaiting end of stream"
	case stateAwaitingToSendData:
		return "awaiting to send data"
	case stateAwaitingConfirmation:
		return "awaiting query confirmation"
	case stateAwaitingPong:
		return "awaiting pong"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// emission is a terminal outcome handed to the correlator: a fulfilled value
// (ServerInfo, *Result, or nil for executed/pong) or a server exception.
// Progress and profile frames never emit.
type emission struct {
	value any
	err   error
}

// machine consumes decoded frames and produces at most one terminal emission
// per frame, plus an optional data block to write back (insert schema
// round-trip). A returned error is fatal and closes the connection.
type machine struct {
	state      connState
	blocks     []*Block
	result     *Result
	insertCols []Column

	log        *zap.Logger
	onProgress func(Progress)
}

// start validates and applies an outbound command transition. Connect is
// only valid before the handshake; everything else requires ready.
func (m *machine) start(next connState, insertCols []Column) error {
	if m.state == stateClosed {
		return ErrClosed
	}
	if next == stateConnecting {
		if m.state != stateNotConnected {
			return errors.Wrapf(ErrNotReady, "connect in state %q", m.state)
		}
	} else if m.state != stateReady {
		if m.state == stateNotConnected {
			return errors.Wrap(ErrNotReady, "not connected")
		}
		return errors.Wrapf(ErrNotReady, "operation in state %q", m.state)
	}
	m.blocks = nil
	m.result = nil
	m.insertCols = insertCols
	m.state = next
	return nil
}

func (m *machine) toReady() {
	m.state = stateReady
	m.blocks = nil
	m.result = nil
	m.insertCols = nil
}

// handleFrame drives the inbound transitions.
func (m *machine) handleFrame(f any, revision uint64) (*emission, *Block, error) {
	if m.state == stateClosed {
		return nil, nil, nil
	}

	switch fr := f.(type) {
	case exceptionFrame:
		if m.state == stateNotConnected {
			return nil, nil, errors.Wrap(ErrProtocol, "server exception before connect")
		}
		// the connection survives server-side query errors
		m.toReady()
		return &emission{err: fr.err}, nil, nil

	case helloFrame:
		if m.state != stateConnecting {
			return nil, nil, errors.Wrapf(ErrProtocol, "unexpected server hello in state %q", m.state)
		}
		m.state = stateReady
		return &emission{value: fr.info}, nil, nil

	case dataFrame:
		return m.handleData(fr.block)

	case progressFrame:
		switch m.state {
		case stateAwaitingQueryResult, stateAwaitingEndOfStream, stateAwaitingConfirmation:
			m.log.Debug("query progress",
				zap.Uint64("rows", fr.progress.Rows),
				zap.Uint64("bytes", fr.progress.Bytes),
				zap.Uint64("total_rows", fr.progress.TotalRows))
			if m.onProgress != nil {
				m.onProgress(fr.progress)
			}
			return nil, nil, nil
		}
		return nil, nil, errors.Wrapf(ErrProtocol, "unexpected progress in state %q", m.state)

	case profileFrame:
		switch m.state {
		case stateAwaitingQueryResult, stateAwaitingConfirmation:
			m.log.Debug("query profile",
				zap.Uint64("rows", fr.info.Rows),
				zap.Uint64("blocks", fr.info.Blocks),
				zap.Uint64("bytes", fr.info.Bytes))
			return nil, nil, nil
		}
		return nil, nil, errors.Wrapf(ErrProtocol, "unexpected profile info in state %q", m.state)

	case pongFrame:
		if m.state != stateAwaitingPong {
			return nil, nil, errors.Wrapf(ErrProtocol, "unexpected pong in state %q", m.state)
		}
		m.toReady()
		return &emission{}, nil, nil

	case endOfStreamFrame:
		switch m.state {
		case stateAwaitingEndOfStream:
			res := m.result
			m.toReady()
			return &emission{value: res}, nil, nil
		case stateAwaitingConfirmation:
			m.toReady()
			return &emission{}, nil, nil
		}
		return nil, nil, errors.Wrapf(ErrProtocol, "unexpected end of stream in state %q", m.state)
	}
	return nil, nil, errors.Wrapf(ErrProtocol, "unhandled frame %T in state %q", f, m.state)
}

func (m *machine) handleData(block *Block) (*emission, *Block, error) {
	switch m.state {
	case stateAwaitingQueryResult:
		if len(block.Columns) == 0 {
			res, err := mergeBlocks(m.blocks)
			if err != nil {
				return nil, nil, err
			}
			m.result = res
			m.blocks = nil
			m.state = stateAwaitingEndOfStream
			return nil, nil, nil
		}
		m.blocks = append(m.blocks, block)
		return nil, nil, nil

	case stateAwaitingToSendData:
		reply, err := bindInsertSchema(m.insertCols, block)
		if err != nil {
			return nil, nil, err
		}
		m.insertCols = nil
		m.state = stateAwaitingConfirmation
		return nil, reply, nil

	case stateAwaitingConfirmation:
		// servers may echo data during inserts; nothing to do with it
		return nil, nil, nil

	case stateAwaitingEndOfStream:
		return nil, nil, errors.Wrap(ErrProtocol, "data frame after result end")
	}
	return nil, nil, errors.Wrapf(ErrProtocol, "unexpected data frame in state %q", m.state)
}

// bindInsertSchema validates the user's insert columns against the
// server-declared target schema and attaches the declared type descriptors.
func bindInsertSchema(cols []Column, schema *Block) (*Block, error) {
	if len(schema.Columns) != len(cols) {
		return nil, errors.Wrapf(ErrProtocol, "insert target has %d columns, got %d", len(schema.Columns), len(cols))
	}
	bound := make([]Column, len(cols))
	for i := range cols {
		declared := schema.Columns[i]
		if cols[i].Name != declared.Name {
			return nil, errors.Wrapf(ErrProtocol, "insert column %d is %q, target declares %q", i, cols[i].Name, declared.Name)
		}
		bound[i] = Column{Name: cols[i].Name, Type: declared.Type, Data: cols[i].Data}
	}
	return newBlock(bound), nil
}

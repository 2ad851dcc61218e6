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

// ServerInfo is the handshake result. Revision gates which optional fields
// later frames carry.
type ServerInfo struct {
	Name         string
	VersionMajor uint64
	VersionMinor uint64
	Revision     uint64
	Timezone     string
}

func (s ServerInfo) String() string {
	if s.Timezone != "" {
		return fmt.Sprintf("%s %d.%d (revision %d, timezone %s)", s.Name, s.VersionMajor, s.VersionMinor, s.Revision, s.Timezone)
	}
	return fmt.Sprintf("%s %d.%d (revision %d)", s.Name, s.VersionMajor, s.VersionMinor, s.Revision)
}

// Progress reports rows and bytes read so far for the running query.
type Progress struct {
	Rows      uint64
	Bytes     uint64
	TotalRows uint64
}

// ProfileInfo summarizes a finished query.
type ProfileInfo struct {
	Rows                      uint64
	Blocks                    uint64
	Bytes                     uint64
	AppliedLimit              bool
	RowsBeforeLimit           uint64
	CalculatedRowsBeforeLimit bool
}

// Inbound frames produced by the decoder.
type (
	helloFrame       struct{ info ServerInfo }
	dataFrame        struct{ block *Block }
	exceptionFrame   struct{ err *Exception }
	progressFrame    struct{ progress Progress }
	pongFrame        struct{}
	endOfStreamFrame struct{}
	profileFrame     struct{ info ProfileInfo }
)

/******************************************************************************
*                              Outbound frames                                *
******************************************************************************/

func writeHello(w *writeBuffer, cfg *Config) {
	w.uvarint(clientHello)
	w.str(clientName)
	w.uvarint(clientVersionMajor)
	w.uvarint(clientVersionMinor)
	w.uvarint(clientRevision)
	w.str(cfg.Database)
	w.str(cfg.User)
	w.str(cfg.Passwd)
}

func writeQuery(w *writeBuffer, revision uint64, queryID, sql string) {
	w.uvarint(clientQuery)
	w.str(queryID)
	if revision >= revisionWithClientInfo {
		writeClientInfo(w, revision)
	}
	// settings terminator
	w.str("")
	w.uvarint(stageComplete)
	w.uvarint(compressionDisable)
	w.str(sql)
	// an empty data block ends the query preamble
	writeEmptyBlock(w, revision)
}

// writeClientInfo writes the query origin block: kind initial-query, TCP
// interface, no initial user/query/address and no quota key.
func writeClientInfo(w *writeBuffer, revision uint64) {
	w.uint8(1) // query kind: initial query
	w.str("")  // initial user
	w.str("")  // initial query id
	w.str("")  // initial address
	w.uint8(1) // interface: TCP
	w.str("")  // os user
	w.str("")  // client hostname
	w.str(clientName)
	w.uvarint(clientVersionMajor)
	w.uvarint(clientVersionMinor)
	w.uvarint(clientRevision)
	if revision >= revisionWithQuotaKey {
		w.str("") // quota key
	}
}

func writeData(w *writeBuffer, revision uint64, b *Block) error {
	w.uvarint(clientData)
	return writeBlock(w, revision, b)
}

func writePing(w *writeBuffer) {
	w.uvarint(clientPing)
}

/******************************************************************************
*                               Inbound frames                                *
******************************************************************************/

// decodeFrame parses one opcode-tagged frame from r.
func decodeFrame(r *readBuffer, revision uint64) (any, error) {
	opcode, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	switch opcode {
	case serverHello:
		info, err := readServerInfo(r)
		if err != nil {
			return nil, err
		}
		return helloFrame{info: info}, nil
	case serverData:
		block, err := readBlock(r, revision)
		if err != nil {
			return nil, err
		}
		return dataFrame{block: block}, nil
	case serverException:
		ex, err := readException(r)
		if err != nil {
			return nil, err
		}
		return exceptionFrame{err: ex}, nil
	case serverProgress:
		p, err := readProgress(r, revision)
		if err != nil {
			return nil, err
		}
		return progressFrame{progress: p}, nil
	case serverPong:
		return pongFrame{}, nil
	case serverEndOfStream:
		return endOfStreamFrame{}, nil
	case serverProfileInfo:
		p, err := readProfileInfo(r)
		if err != nil {
			return nil, err
		}
		return profileFrame{info: p}, nil
	case serverTotals, serverExtremes:
		return nil, errors.Wrapf(ErrProtocol, "unsupported server frame %d (totals/extremes)", opcode)
	}
	return nil, errors.Wrapf(ErrProtocol, "unknown server frame %d", opcode)
}

func readServerInfo(r *readBuffer) (info ServerInfo, err error) {
	if info.Name, err = r.str(); err != nil {
		return info, err
	}
	if info.VersionMajor, err = r.uvarint(); err != nil {
		return info, err
	}
	if info.VersionMinor, err = r.uvarint(); err != nil {
		return info, err
	}
	if info.Revision, err = r.uvarint(); err != nil {
		return info, err
	}
	if info.Revision >= revisionWithServerTimezone {
		if info.Timezone, err = r.str(); err != nil {
			return info, err
		}
	}
	return info, nil
}

func readException(r *readBuffer) (*Exception, error) {
	ex := new(Exception)
	var err error
	if ex.Code, err = r.uint32(); err != nil {
		return nil, err
	}
	if ex.Name, err = r.str(); err != nil {
		return nil, err
	}
	if ex.Message, err = r.str(); err != nil {
		return nil, err
	}
	if ex.StackTrace, err = r.str(); err != nil {
		return nil, err
	}
	nested, err := r.uint8()
	if err != nil {
		return nil, err
	}
	if nested != 0 {
		if ex.Nested, err = readException(r); err != nil {
			return nil, err
		}
	}
	return ex, nil
}

func readProgress(r *readBuffer, revision uint64) (p Progress, err error) {
	if p.Rows, err = r.uvarint(); err != nil {
		return p, err
	}
	if p.Bytes, err = r.uvarint(); err != nil {
		return p, err
	}
	if revision >= revisionWithTotalRowsInProgress {
		if p.TotalRows, err = r.uvarint(); err != nil {
			return p, err
		}
	}
	return p, nil
}

func readProfileInfo(r *readBuffer) (p ProfileInfo, err error) {
	if p.Rows, err = r.uvarint(); err != nil {
		return p, err
	}
	if p.Blocks, err = r.uvarint(); err != nil {
		return p, err
	}
	if p.Bytes, err = r.uvarint(); err != nil {
		return p, err
	}
	applied, err := r.uint8()
	if err != nil {
		return p, err
	}
	p.AppliedLimit = applied != 0
	if p.RowsBeforeLimit, err = r.uvarint(); err != nil {
		return p, err
	}
	calculated, err := r.uint8()
	if err != nil {
		return p, err
	}
	p.CalculatedRowsBeforeLimit = calculated != 0
	return p, nil
}

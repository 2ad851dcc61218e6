// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import "github.com/go-faster/errors"

const defaultBufSize = 4096

// decoder buffers inbound bytes and turns them into frames. It is similar
// to a bufio.Reader but message-oriented: each attempt parses on a copy of
// the read cursor and commits only on success, so a partial frame is simply
// retried once more bytes arrive.
type decoder struct {
	buf []byte
}

func (d *decoder) feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// pending reports whether undecoded bytes remain.
func (d *decoder) pending() bool {
	return len(d.buf) > 0
}

// next decodes one frame. It returns (nil, nil) when the buffer does not yet
// hold a complete frame.
func (d *decoder) next(revision uint64) (any, error) {
	r := readBuffer{b: d.buf}
	f, err := decodeFrame(&r, revision)
	if err != nil {
		if errors.Is(err, errIncomplete) {
			return nil, nil
		}
		return nil, err
	}
	n := copy(d.buf, d.buf[r.off:])
	d.buf = d.buf[:n]
	return f, nil
}

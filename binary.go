// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// writeBuffer accumulates an outbound frame. VarInts and string lengths use
// the 7-bit-group encoding; fixed-width scalars are little-endian.
type writeBuffer struct {
	b []byte
}

func (w *writeBuffer) reset() {
	w.b = w.b[:0]
}

func (w *writeBuffer) uvarint(v uint64) {
	for v >= 0x80 {
		w.b = append(w.b, byte(v)|0x80)
		v >>= 7
	}
	w.b = append(w.b, byte(v))
}

func (w *writeBuffer) str(s string) {
	w.uvarint(uint64(len(s)))
	w.b = append(w.b, s...)
}

// fixedStr writes up to n bytes of s and zero-pads to exactly n. Truncation
// is byte-wise and may split a multi-byte code point.
func (w *writeBuffer) fixedStr(s string, n int) {
	if len(s) > n {
		s = s[:n]
	}
	w.b = append(w.b, s...)
	for i := len(s); i < n; i++ {
		w.b = append(w.b, 0)
	}
}

func (w *writeBuffer) uint8(v uint8) {
	w.b = append(w.b, v)
}

func (w *writeBuffer) uint16(v uint16) {
	w.b = binary.LittleEndian.AppendUint16(w.b, v)
}

func (w *writeBuffer) uint32(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}

func (w *writeBuffer) uint64(v uint64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, v)
}

func (w *writeBuffer) int32(v int32) {
	w.uint32(uint32(v))
}

func (w *writeBuffer) int64(v int64) {
	w.uint64(uint64(v))
}

func (w *writeBuffer) float32(v float32) {
	w.uint32(math.Float32bits(v))
}

func (w *writeBuffer) float64(v float64) {
	w.uint64(math.Float64bits(v))
}

// uuid writes the 16 bytes of u with each 8-byte half reversed, the server's
// native representation.
func (w *writeBuffer) uuid(u uuid.UUID) {
	var swapped [16]byte
	swapUUID(&swapped, u)
	w.b = append(w.b, swapped[:]...)
}

func swapUUID(dst *[16]byte, u uuid.UUID) {
	for i := 0; i < 8; i++ {
		dst[i] = u[7-i]
		dst[8+i] = u[15-i]
	}
}

func unswapUUID(p []byte) (u uuid.UUID) {
	for i := 0; i < 8; i++ {
		u[i] = p[7-i]
		u[8+i] = p[15-i]
	}
	return u
}

// readBuffer is a cursor over buffered inbound bytes. Reads past the end
// return errIncomplete; the caller retries once more bytes arrive. Copying
// the struct copies the cursor, which is how the decoder speculates.
type readBuffer struct {
	b   []byte
	off int
}

func (r *readBuffer) remaining() int {
	return len(r.b) - r.off
}

func (r *readBuffer) next(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, errIncomplete
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *readBuffer) uvarint() (uint64, error) {
	var v uint64
	for i := 0; i < maxVarIntLen; i++ {
		if r.off+i >= len(r.b) {
			return 0, errIncomplete
		}
		b := r.b[r.off+i]
		v |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			r.off += i + 1
			return v, nil
		}
	}
	return 0, errVarIntTooLong
}

func (r *readBuffer) str() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	if n > maxStringSize {
		return "", errMalformedString
	}
	p, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// fixedStr reads exactly n bytes and cuts at the first NUL, which strips the
// zero padding (and, unavoidably, anything after an embedded NUL).
func (r *readBuffer) fixedStr(n int) (string, error) {
	p, err := r.next(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p), nil
}

func (r *readBuffer) uint8() (uint8, error) {
	p, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *readBuffer) uint16() (uint16, error) {
	p, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (r *readBuffer) uint32() (uint32, error) {
	p, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (r *readBuffer) uint64() (uint64, error) {
	p, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func (r *readBuffer) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *readBuffer) int64() (int64, error) {
	v, err := r.uint64()
	return int64(v), err
}

func (r *readBuffer) float32() (float32, error) {
	v, err := r.uint32()
	return math.Float32frombits(v), err
}

func (r *readBuffer) float64() (float64, error) {
	v, err := r.uint64()
	return math.Float64frombits(v), err
}

func (r *readBuffer) uuid() (uuid.UUID, error) {
	p, err := r.next(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	return unswapUUID(p), nil
}

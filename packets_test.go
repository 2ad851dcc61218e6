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
	"errors"
	"testing"
)

func serverHelloBytes(revision uint64) []byte {
	var w writeBuffer
	w.uvarint(serverHello)
	w.str("ClickHouse")
	w.uvarint(23)
	w.uvarint(3)
	w.uvarint(revision)
	if revision >= revisionWithServerTimezone {
		w.str("UTC")
	}
	return w.b
}

func TestDecoderIncrementalFeed(t *testing.T) {
	frame := serverHelloBytes(clientRevision)
	var d decoder
	for i, b := range frame {
		f, err := d.next(0)
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if f != nil {
			t.Fatalf("byte %d: frame decoded early", i)
		}
		d.feed([]byte{b})
	}
	f, err := d.next(0)
	if err != nil {
		t.Fatal(err)
	}
	hf, ok := f.(helloFrame)
	if !ok {
		t.Fatalf("decoded %T", f)
	}
	if hf.info.Name != "ClickHouse" || hf.info.Revision != clientRevision || hf.info.Timezone != "UTC" {
		t.Errorf("server info = %+v", hf.info)
	}
	if d.pending() {
		t.Error("bytes left in decoder")
	}
}

func TestDecoderBackToBackFrames(t *testing.T) {
	var w writeBuffer
	w.uvarint(serverPong)
	w.uvarint(serverEndOfStream)
	var d decoder
	d.feed(w.b)
	if f, err := d.next(clientRevision); err != nil {
		t.Fatal(err)
	} else if _, ok := f.(pongFrame); !ok {
		t.Fatalf("decoded %T, want pong", f)
	}
	if f, err := d.next(clientRevision); err != nil {
		t.Fatal(err)
	} else if _, ok := f.(endOfStreamFrame); !ok {
		t.Fatalf("decoded %T, want end of stream", f)
	}
}

func TestDecoderUnknownOpcode(t *testing.T) {
	var d decoder
	d.feed([]byte{99})
	if _, err := d.next(clientRevision); !errors.Is(err, ErrProtocol) {
		t.Errorf("got %v, want protocol error", err)
	}
}

func TestDecoderTotalsUnsupported(t *testing.T) {
	var d decoder
	d.feed([]byte{serverTotals})
	if _, err := d.next(clientRevision); !errors.Is(err, ErrProtocol) {
		t.Errorf("got %v, want protocol error", err)
	}
}

func TestDecodeException(t *testing.T) {
	var w writeBuffer
	w.uvarint(serverException)
	w.uint32(62)
	w.str("DB::Exception")
	w.str("DB::Exception: Syntax error: failed at position 1")
	w.str("stack")
	w.uint8(1)
	w.uint32(100)
	w.str("DB::NestedException")
	w.str("inner")
	w.str("")
	w.uint8(0)

	var d decoder
	d.feed(w.b)
	f, err := d.next(clientRevision)
	if err != nil {
		t.Fatal(err)
	}
	ef, ok := f.(exceptionFrame)
	if !ok {
		t.Fatalf("decoded %T", f)
	}
	ex := ef.err
	if ex.Code != 62 || ex.Name != "DB::Exception" {
		t.Errorf("exception = %+v", ex)
	}
	if ex.Nested == nil || ex.Nested.Code != 100 {
		t.Errorf("nested = %+v", ex.Nested)
	}
	var nested *Exception
	if !errors.As(ex.Unwrap(), &nested) || nested.Name != "DB::NestedException" {
		t.Errorf("unwrap = %v", ex.Unwrap())
	}
}

func TestDecodeProgressRevisionGate(t *testing.T) {
	var w writeBuffer
	w.uvarint(serverProgress)
	w.uvarint(10)
	w.uvarint(2048)
	w.uvarint(100)

	var d decoder
	d.feed(w.b)
	f, err := d.next(clientRevision)
	if err != nil {
		t.Fatal(err)
	}
	pf := f.(progressFrame)
	if pf.progress.Rows != 10 || pf.progress.Bytes != 2048 || pf.progress.TotalRows != 100 {
		t.Errorf("progress = %+v", pf.progress)
	}

	// below TOTAL_ROWS_IN_PROGRESS the third field is absent
	var w2 writeBuffer
	w2.uvarint(serverProgress)
	w2.uvarint(10)
	w2.uvarint(2048)
	var d2 decoder
	d2.feed(w2.b)
	f, err = d2.next(51000)
	if err != nil {
		t.Fatal(err)
	}
	pf = f.(progressFrame)
	if pf.progress.TotalRows != 0 {
		t.Errorf("total rows = %d, want 0", pf.progress.TotalRows)
	}
	if d2.pending() {
		t.Error("bytes left in decoder")
	}
}

func TestDecodeProfileInfo(t *testing.T) {
	var w writeBuffer
	w.uvarint(serverProfileInfo)
	w.uvarint(100)
	w.uvarint(2)
	w.uvarint(4096)
	w.uint8(1)
	w.uvarint(90)
	w.uint8(0)

	var d decoder
	d.feed(w.b)
	f, err := d.next(clientRevision)
	if err != nil {
		t.Fatal(err)
	}
	pf := f.(profileFrame)
	want := ProfileInfo{Rows: 100, Blocks: 2, Bytes: 4096, AppliedLimit: true, RowsBeforeLimit: 90}
	if pf.info != want {
		t.Errorf("profile = %+v, want %+v", pf.info, want)
	}
}

func TestDecodeDataFrame(t *testing.T) {
	blk := newBlock([]Column{mustColumn(t, "id", "UInt32", []uint32{1, 2})})
	var w writeBuffer
	w.uvarint(serverData)
	if err := writeBlock(&w, clientRevision, blk); err != nil {
		t.Fatal(err)
	}
	var d decoder
	d.feed(w.b)
	f, err := d.next(clientRevision)
	if err != nil {
		t.Fatal(err)
	}
	df, ok := f.(dataFrame)
	if !ok {
		t.Fatalf("decoded %T", f)
	}
	if df.block.Rows() != 2 || df.block.Columns[0].Name != "id" {
		t.Errorf("block = %+v", df.block)
	}
}

func TestWriteHello(t *testing.T) {
	cfg := NewConfig()
	cfg.Database = "db"
	cfg.User = "user"
	cfg.Passwd = "pass"
	var w writeBuffer
	writeHello(&w, cfg)

	r := readBuffer{b: w.b}
	opcode, err := r.uvarint()
	if err != nil || opcode != clientHello {
		t.Fatalf("opcode = %d, %v", opcode, err)
	}
	name, _ := r.str()
	if name != clientName {
		t.Errorf("client name = %q", name)
	}
	major, _ := r.uvarint()
	minor, _ := r.uvarint()
	revision, _ := r.uvarint()
	if major != clientVersionMajor || minor != clientVersionMinor || revision != clientRevision {
		t.Errorf("version = %d.%d rev %d", major, minor, revision)
	}
	for _, want := range []string{"db", "user", "pass"} {
		got, err := r.str()
		if err != nil || got != want {
			t.Errorf("got %q, %v, want %q", got, err, want)
		}
	}
	if r.remaining() != 0 {
		t.Errorf("%d trailing bytes", r.remaining())
	}
}

func TestWriteQuery(t *testing.T) {
	var w writeBuffer
	writeQuery(&w, clientRevision, "0123456789abcdef", "SELECT 1")

	r := readBuffer{b: w.b}
	opcode, err := r.uvarint()
	if err != nil || opcode != clientQuery {
		t.Fatalf("opcode = %d, %v", opcode, err)
	}
	id, _ := r.str()
	if id != "0123456789abcdef" {
		t.Errorf("query id = %q", id)
	}
	if !bytes.Contains(w.b, []byte("SELECT 1")) {
		t.Error("query text missing")
	}
	// client info: kind byte followed by the empty origin markers
	kind, _ := r.uint8()
	if kind != 1 {
		t.Errorf("query kind = %d", kind)
	}
}

func TestWriteQueryOldRevisionSkipsClientInfo(t *testing.T) {
	var w writeBuffer
	writeQuery(&w, 54000, "id", "SELECT 1")

	r := readBuffer{b: w.b}
	if opcode, _ := r.uvarint(); opcode != clientQuery {
		t.Fatal("bad opcode")
	}
	if id, _ := r.str(); id != "id" {
		t.Fatal("bad query id")
	}
	// next is the empty settings terminator, then stage and compression
	if s, _ := r.str(); s != "" {
		t.Errorf("settings terminator = %q", s)
	}
	if stage, _ := r.uvarint(); stage != stageComplete {
		t.Errorf("stage = %d", stage)
	}
	if comp, _ := r.uvarint(); comp != compressionDisable {
		t.Errorf("compression = %d", comp)
	}
	if sql, _ := r.str(); sql != "SELECT 1" {
		t.Errorf("sql = %q", sql)
	}
}

// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import "github.com/go-faster/errors"

// BlockInfo is the fixed header carried by every data block on revisions
// that support it.
type BlockInfo struct {
	IsOverflows bool
	BucketNum   int32
}

// Block is a batch of columns exchanged by the protocol. All columns hold
// the same number of rows.
type Block struct {
	TableName string
	Info      BlockInfo
	Columns   []Column
}

func newBlock(columns []Column) *Block {
	return &Block{Info: BlockInfo{BucketNum: -1}, Columns: columns}
}

// Rows is the number of rows in the block.
func (b *Block) Rows() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return b.Columns[0].Data.Rows()
}

func writeBlock(w *writeBuffer, revision uint64, b *Block) error {
	if revision >= revisionWithTemporaryTables {
		w.str(b.TableName)
	}
	if revision >= revisionWithBlockInfo {
		w.uvarint(1)
		if b.Info.IsOverflows {
			w.uint8(1)
		} else {
			w.uint8(0)
		}
		w.uvarint(2)
		w.int32(b.Info.BucketNum)
		w.uvarint(0)
	}
	w.uvarint(uint64(len(b.Columns)))
	w.uvarint(uint64(b.Rows()))
	for _, col := range b.Columns {
		w.str(col.Name)
		w.str(col.Type.String())
		if err := col.Data.encode(w, col.Type); err != nil {
			return err
		}
	}
	return nil
}

func writeEmptyBlock(w *writeBuffer, revision uint64) {
	// An empty block cannot fail to encode.
	_ = writeBlock(w, revision, newBlock(nil))
}

func readBlock(r *readBuffer, revision uint64) (*Block, error) {
	b := newBlock(nil)
	var err error
	if revision >= revisionWithTemporaryTables {
		if b.TableName, err = r.str(); err != nil {
			return nil, err
		}
	}
	if revision >= revisionWithBlockInfo {
		if err = readBlockInfo(r, &b.Info); err != nil {
			return nil, err
		}
	}
	numColumns, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	numRows, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if numColumns > maxStringSize || numRows > maxStringSize {
		return nil, errors.Wrapf(ErrProtocol, "implausible block size %d x %d", numColumns, numRows)
	}
	for i := uint64(0); i < numColumns; i++ {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		typeStr, err := r.str()
		if err != nil {
			return nil, err
		}
		colType, err := ParseColumnType(typeStr)
		if err != nil {
			return nil, err
		}
		data, err := decodeColumn(r, colType, int(numRows))
		if err != nil {
			return nil, err
		}
		b.Columns = append(b.Columns, Column{Name: name, Type: colType, Data: data})
	}
	return b, nil
}

// readBlockInfo reads the field-id driven block header: (1, u8 is_overflows,
// 2, i32 bucket_num, 0).
func readBlockInfo(r *readBuffer, info *BlockInfo) error {
	for {
		field, err := r.uvarint()
		if err != nil {
			return err
		}
		switch field {
		case 0:
			return nil
		case 1:
			v, err := r.uint8()
			if err != nil {
				return err
			}
			info.IsOverflows = v != 0
		case 2:
			if info.BucketNum, err = r.int32(); err != nil {
				return err
			}
		default:
			return errors.Wrapf(ErrProtocol, "unknown block info field %d", field)
		}
	}
}

// Result is the outcome of a Query: the merged columns of all received data
// blocks.
type Result struct {
	Columns []Column
}

// Rows is the row count of the result.
func (r *Result) Rows() int {
	if len(r.Columns) == 0 {
		return 0
	}
	return r.Columns[0].Data.Rows()
}

// Column returns the named column, or nil if absent.
func (r *Result) Column(name string) *Column {
	for i := range r.Columns {
		if r.Columns[i].Name == name {
			return &r.Columns[i]
		}
	}
	return nil
}

// mergeBlocks synthesizes a query result. The first block carries the schema
// with zero rows; further blocks carry rows and are concatenated per column.
func mergeBlocks(blocks []*Block) (*Result, error) {
	switch {
	case len(blocks) == 0:
		return &Result{}, nil
	case len(blocks) == 1:
		return &Result{Columns: blocks[0].Columns}, nil
	case len(blocks) == 2 && blocks[0].Rows() == 0:
		return &Result{Columns: blocks[1].Columns}, nil
	}
	base := blocks[0]
	for _, b := range blocks[1:] {
		if len(b.Columns) != len(base.Columns) {
			return nil, errors.Wrapf(ErrDataType, "block with %d columns cannot merge into %d", len(b.Columns), len(base.Columns))
		}
		for i := range base.Columns {
			dst, src := &base.Columns[i], b.Columns[i]
			if dst.Type.String() != src.Type.String() {
				return nil, errors.Wrapf(ErrDataType, "column %q type changed between blocks: %s vs %s", dst.Name, dst.Type, src.Type)
			}
			if err := dst.Data.appendSame(src.Data); err != nil {
				return nil, err
			}
		}
	}
	return &Result{Columns: base.Columns}, nil
}

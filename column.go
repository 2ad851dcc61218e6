// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ColumnData is a homogeneous vector of column values. Implementations
// encode themselves for a given type descriptor, decode is performed by
// decodeColumn, and two containers of the same concrete type merge with
// appendSame.
type ColumnData interface {
	// Rows is the number of values held.
	Rows() int
	// Row returns the value at index i. Nullable columns return nil for
	// null rows, arrays return the typed sub-slice, maps return a
	// map[string]string.
	Row(i int) any
	// Values returns the underlying typed slice, e.g. []uint32, []*uint32,
	// [][]int32, []map[string]string.
	Values() any

	appendSame(other ColumnData) error
	encode(w *writeBuffer, t *ColumnType) error
}

// Column is a named, typed vector. Type may be nil on columns built for an
// insert; the server-declared schema fills it in before encoding.
type Column struct {
	Name string
	Type *ColumnType
	Data ColumnData
}

// NewColumn builds an insert column from a Go slice. Supported element
// types: the fixed-width integers and floats, bool, string, time.Time,
// uuid.UUID, pointers to any of those for nullable columns, slices of any of
// those for array columns, and map[string]string for map columns.
func NewColumn(name string, values any) (Column, error) {
	data, err := newColumnData(values)
	if err != nil {
		return Column{}, err
	}
	return Column{Name: name, Data: data}, nil
}

func newColumnData(values any) (ColumnData, error) {
	switch v := values.(type) {
	case []uint8:
		return &numColumn[uint8]{data: v}, nil
	case []uint16:
		return &numColumn[uint16]{data: v}, nil
	case []uint32:
		return &numColumn[uint32]{data: v}, nil
	case []uint64:
		return &numColumn[uint64]{data: v}, nil
	case []int8:
		return &numColumn[int8]{data: v}, nil
	case []int16:
		return &numColumn[int16]{data: v}, nil
	case []int32:
		return &numColumn[int32]{data: v}, nil
	case []int64:
		return &numColumn[int64]{data: v}, nil
	case []float32:
		return &numColumn[float32]{data: v}, nil
	case []float64:
		return &numColumn[float64]{data: v}, nil
	case []bool:
		return &boolColumn{data: v}, nil
	case []string:
		return &stringColumn{data: v}, nil
	case []time.Time:
		return &timeColumn{data: v}, nil
	case []uuid.UUID:
		return &uuidColumn{data: v}, nil

	case []*uint8:
		return nullableOf(v), nil
	case []*uint16:
		return nullableOf(v), nil
	case []*uint32:
		return nullableOf(v), nil
	case []*uint64:
		return nullableOf(v), nil
	case []*int8:
		return nullableOf(v), nil
	case []*int16:
		return nullableOf(v), nil
	case []*int32:
		return nullableOf(v), nil
	case []*int64:
		return nullableOf(v), nil
	case []*float32:
		return nullableOf(v), nil
	case []*float64:
		return nullableOf(v), nil
	case []*bool:
		return nullableOf(v), nil
	case []*string:
		return nullableOf(v), nil
	case []*time.Time:
		return nullableOf(v), nil
	case []*uuid.UUID:
		return nullableOf(v), nil

	case [][]uint8:
		return arrayOf(v)
	case [][]uint16:
		return arrayOf(v)
	case [][]uint32:
		return arrayOf(v)
	case [][]uint64:
		return arrayOf(v)
	case [][]int8:
		return arrayOf(v)
	case [][]int16:
		return arrayOf(v)
	case [][]int32:
		return arrayOf(v)
	case [][]int64:
		return arrayOf(v)
	case [][]float32:
		return arrayOf(v)
	case [][]float64:
		return arrayOf(v)
	case [][]bool:
		return arrayOf(v)
	case [][]string:
		return arrayOf(v)
	case [][]time.Time:
		return arrayOf(v)
	case [][]uuid.UUID:
		return arrayOf(v)

	case []map[string]string:
		return mapOf(v), nil
	}
	return nil, errors.Wrapf(ErrDataType, "unsupported column values %T", values)
}

func typeMismatch(c ColumnData, t *ColumnType) error {
	return errors.Wrapf(ErrDataType, "cannot encode %T as %s", c, t)
}

func mergeMismatch(a, b ColumnData) error {
	return errors.Wrapf(ErrDataType, "cannot merge %T into %T", b, a)
}

// numValue is the fixed-width scalar set.
type numValue interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

type numColumn[T numValue] struct {
	data []T
}

func (c *numColumn[T]) Rows() int     { return len(c.data) }
func (c *numColumn[T]) Row(i int) any { return c.data[i] }
func (c *numColumn[T]) Values() any   { return c.data }

func (c *numColumn[T]) appendSame(other ColumnData) error {
	o, ok := other.(*numColumn[T])
	if !ok {
		return mergeMismatch(c, other)
	}
	c.data = append(c.data, o.data...)
	return nil
}

func (c *numColumn[T]) encode(w *writeBuffer, t *ColumnType) error {
	switch data := any(c.data).(type) {
	case []uint8:
		if t.Kind != KindUInt8 {
			return typeMismatch(c, t)
		}
		w.b = append(w.b, data...)
	case []uint16:
		if t.Kind != KindUInt16 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.uint16(v)
		}
	case []uint32:
		if t.Kind != KindUInt32 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.uint32(v)
		}
	case []uint64:
		if t.Kind != KindUInt64 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.uint64(v)
		}
	case []int8:
		if t.Kind != KindInt8 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.uint8(uint8(v))
		}
	case []int16:
		if t.Kind != KindInt16 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.uint16(uint16(v))
		}
	case []int32:
		if t.Kind != KindInt32 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.uint32(uint32(v))
		}
	case []int64:
		if t.Kind != KindInt64 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.uint64(uint64(v))
		}
	case []float32:
		if t.Kind != KindFloat32 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.float32(v)
		}
	case []float64:
		if t.Kind != KindFloat64 {
			return typeMismatch(c, t)
		}
		for _, v := range data {
			w.float64(v)
		}
	}
	return nil
}

func decodeNums[T numValue](r *readBuffer, rows int) (*numColumn[T], error) {
	out := make([]T, rows)
	switch data := any(out).(type) {
	case []uint8:
		p, err := r.next(rows)
		if err != nil {
			return nil, err
		}
		copy(data, p)
	case []uint16:
		for i := range data {
			v, err := r.uint16()
			if err != nil {
				return nil, err
			}
			data[i] = v
		}
	case []uint32:
		for i := range data {
			v, err := r.uint32()
			if err != nil {
				return nil, err
			}
			data[i] = v
		}
	case []uint64:
		for i := range data {
			v, err := r.uint64()
			if err != nil {
				return nil, err
			}
			data[i] = v
		}
	case []int8:
		p, err := r.next(rows)
		if err != nil {
			return nil, err
		}
		for i := range data {
			data[i] = int8(p[i])
		}
	case []int16:
		for i := range data {
			v, err := r.uint16()
			if err != nil {
				return nil, err
			}
			data[i] = int16(v)
		}
	case []int32:
		for i := range data {
			v, err := r.int32()
			if err != nil {
				return nil, err
			}
			data[i] = v
		}
	case []int64:
		for i := range data {
			v, err := r.int64()
			if err != nil {
				return nil, err
			}
			data[i] = v
		}
	case []float32:
		for i := range data {
			v, err := r.float32()
			if err != nil {
				return nil, err
			}
			data[i] = v
		}
	case []float64:
		for i := range data {
			v, err := r.float64()
			if err != nil {
				return nil, err
			}
			data[i] = v
		}
	}
	return &numColumn[T]{data: out}, nil
}

type boolColumn struct {
	data []bool
}

func (c *boolColumn) Rows() int     { return len(c.data) }
func (c *boolColumn) Row(i int) any { return c.data[i] }
func (c *boolColumn) Values() any   { return c.data }

func (c *boolColumn) appendSame(other ColumnData) error {
	o, ok := other.(*boolColumn)
	if !ok {
		return mergeMismatch(c, other)
	}
	c.data = append(c.data, o.data...)
	return nil
}

func (c *boolColumn) encode(w *writeBuffer, t *ColumnType) error {
	if t.Kind != KindBool {
		return typeMismatch(c, t)
	}
	for _, v := range c.data {
		if v {
			w.uint8(1)
		} else {
			w.uint8(0)
		}
	}
	return nil
}

func decodeBools(r *readBuffer, rows int) (*boolColumn, error) {
	p, err := r.next(rows)
	if err != nil {
		return nil, err
	}
	out := make([]bool, rows)
	for i := range out {
		out[i] = p[i] != 0
	}
	return &boolColumn{data: out}, nil
}

// stringColumn holds String, FixedString and Enum values; the descriptor
// picks the wire encoding.
type stringColumn struct {
	data []string
}

func (c *stringColumn) Rows() int     { return len(c.data) }
func (c *stringColumn) Row(i int) any { return c.data[i] }
func (c *stringColumn) Values() any   { return c.data }

func (c *stringColumn) appendSame(other ColumnData) error {
	o, ok := other.(*stringColumn)
	if !ok {
		return mergeMismatch(c, other)
	}
	c.data = append(c.data, o.data...)
	return nil
}

func (c *stringColumn) encode(w *writeBuffer, t *ColumnType) error {
	switch t.Kind {
	case KindString:
		for _, s := range c.data {
			w.str(s)
		}
	case KindFixedString:
		for _, s := range c.data {
			w.fixedStr(s, t.FixedLen)
		}
	case KindEnum8:
		for _, s := range c.data {
			code, ok := t.enumCode(s)
			if !ok {
				return errors.Wrapf(ErrDataType, "enum name %q not in %s", s, t)
			}
			w.uint8(uint8(int8(code)))
		}
	case KindEnum16:
		for _, s := range c.data {
			code, ok := t.enumCode(s)
			if !ok {
				return errors.Wrapf(ErrDataType, "enum name %q not in %s", s, t)
			}
			w.uint16(uint16(code))
		}
	default:
		return typeMismatch(c, t)
	}
	return nil
}

func decodeStrings(r *readBuffer, t *ColumnType, rows int) (*stringColumn, error) {
	out := make([]string, rows)
	switch t.Kind {
	case KindString:
		for i := range out {
			s, err := r.str()
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
	case KindFixedString:
		for i := range out {
			s, err := r.fixedStr(t.FixedLen)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
	case KindEnum8:
		p, err := r.next(rows)
		if err != nil {
			return nil, err
		}
		for i := range out {
			name, ok := t.enumName(int16(int8(p[i])))
			if !ok {
				return nil, errors.Wrapf(ErrDataType, "enum value %d not in %s", int8(p[i]), t)
			}
			out[i] = name
		}
	case KindEnum16:
		for i := range out {
			v, err := r.uint16()
			if err != nil {
				return nil, err
			}
			name, ok := t.enumName(int16(v))
			if !ok {
				return nil, errors.Wrapf(ErrDataType, "enum value %d not in %s", int16(v), t)
			}
			out[i] = name
		}
	}
	return &stringColumn{data: out}, nil
}

// timeColumn holds the date/time family; the descriptor picks the numeric
// wire representation.
type timeColumn struct {
	data []time.Time
}

func (c *timeColumn) Rows() int     { return len(c.data) }
func (c *timeColumn) Row(i int) any { return c.data[i] }
func (c *timeColumn) Values() any   { return c.data }

func (c *timeColumn) appendSame(other ColumnData) error {
	o, ok := other.(*timeColumn)
	if !ok {
		return mergeMismatch(c, other)
	}
	c.data = append(c.data, o.data...)
	return nil
}

func (c *timeColumn) encode(w *writeBuffer, t *ColumnType) error {
	switch t.Kind {
	case KindDate:
		for _, v := range c.data {
			w.uint16(uint16(floorDiv(v.Unix(), secondsPerDay)))
		}
	case KindDate32:
		for _, v := range c.data {
			w.int32(int32(floorDiv(v.Unix(), secondsPerDay)))
		}
	case KindDateTime:
		for _, v := range c.data {
			w.uint32(uint32(v.Unix()))
		}
	case KindDateTime64:
		pow := pow10(t.Prec)
		for _, v := range c.data {
			ticks := v.Unix()*pow + int64(v.Nanosecond())/pow10(9-t.Prec)
			w.int64(ticks)
		}
	default:
		return typeMismatch(c, t)
	}
	return nil
}

func decodeTimes(r *readBuffer, t *ColumnType, rows int) (*timeColumn, error) {
	out := make([]time.Time, rows)
	switch t.Kind {
	case KindDate:
		for i := range out {
			v, err := r.uint16()
			if err != nil {
				return nil, err
			}
			out[i] = time.Unix(int64(v)*secondsPerDay, 0).UTC()
		}
	case KindDate32:
		for i := range out {
			v, err := r.int32()
			if err != nil {
				return nil, err
			}
			out[i] = time.Unix(int64(v)*secondsPerDay, 0).UTC()
		}
	case KindDateTime:
		for i := range out {
			v, err := r.uint32()
			if err != nil {
				return nil, err
			}
			out[i] = time.Unix(int64(v), 0).UTC()
		}
	case KindDateTime64:
		pow := pow10(t.Prec)
		min, max := dateTime64Bounds(t.Prec)
		for i := range out {
			v, err := r.int64()
			if err != nil {
				return nil, err
			}
			if v < min {
				v = min
			} else if v > max {
				v = max
			}
			sec := floorDiv(v, pow)
			ns := (v - sec*pow) * pow10(9-t.Prec)
			out[i] = time.Unix(sec, ns).UTC()
		}
	}
	return &timeColumn{data: out}, nil
}

const secondsPerDay = 86400

// DateTime64 values outside the server's displayable range decode to the
// endpoint timestamps, matching server behavior.
const (
	dateTime64MinSeconds = -2208988800  // 1900-01-01 00:00:00
	dateTime64MaxTenths  = 104137919999 // 2299-12-31 23:59:59.9
)

func dateTime64Bounds(prec int) (min, max int64) {
	pow := pow10(prec)
	min = dateTime64MinSeconds * pow
	if prec == 0 {
		return min, dateTime64MaxTenths / 10
	}
	max = dateTime64MaxTenths
	for i := 1; i < prec; i++ {
		if max > math.MaxInt64/10 {
			return min, math.MaxInt64
		}
		max *= 10
	}
	return min, max
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

type uuidColumn struct {
	data []uuid.UUID
}

func (c *uuidColumn) Rows() int     { return len(c.data) }
func (c *uuidColumn) Row(i int) any { return c.data[i] }
func (c *uuidColumn) Values() any   { return c.data }

func (c *uuidColumn) appendSame(other ColumnData) error {
	o, ok := other.(*uuidColumn)
	if !ok {
		return mergeMismatch(c, other)
	}
	c.data = append(c.data, o.data...)
	return nil
}

func (c *uuidColumn) encode(w *writeBuffer, t *ColumnType) error {
	if t.Kind != KindUUID {
		return typeMismatch(c, t)
	}
	for _, v := range c.data {
		w.uuid(v)
	}
	return nil
}

func decodeUUIDs(r *readBuffer, rows int) (*uuidColumn, error) {
	out := make([]uuid.UUID, rows)
	for i := range out {
		v, err := r.uuid()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &uuidColumn{data: out}, nil
}

// nullableColumn wraps an inner container with one null flag per row. Null
// slots carry the inner type's default value on the wire.
type nullableColumn struct {
	nulls []uint8
	inner ColumnData
}

func nullableOf[T any](vals []*T) *nullableColumn {
	nulls := make([]uint8, len(vals))
	data := make([]T, len(vals))
	for i, v := range vals {
		if v == nil {
			nulls[i] = 1
		} else {
			data[i] = *v
		}
	}
	inner, _ := newColumnData(data)
	return &nullableColumn{nulls: nulls, inner: inner}
}

func (c *nullableColumn) Rows() int { return len(c.nulls) }

func (c *nullableColumn) Row(i int) any {
	if c.nulls[i] != 0 {
		return nil
	}
	return c.inner.Row(i)
}

func (c *nullableColumn) Values() any {
	switch data := c.inner.Values().(type) {
	case []uint8:
		return ptrSlice(data, c.nulls)
	case []uint16:
		return ptrSlice(data, c.nulls)
	case []uint32:
		return ptrSlice(data, c.nulls)
	case []uint64:
		return ptrSlice(data, c.nulls)
	case []int8:
		return ptrSlice(data, c.nulls)
	case []int16:
		return ptrSlice(data, c.nulls)
	case []int32:
		return ptrSlice(data, c.nulls)
	case []int64:
		return ptrSlice(data, c.nulls)
	case []float32:
		return ptrSlice(data, c.nulls)
	case []float64:
		return ptrSlice(data, c.nulls)
	case []bool:
		return ptrSlice(data, c.nulls)
	case []string:
		return ptrSlice(data, c.nulls)
	case []time.Time:
		return ptrSlice(data, c.nulls)
	case []uuid.UUID:
		return ptrSlice(data, c.nulls)
	}
	return nil
}

// Nulls reports the flag vector, 1 for null rows.
func (c *nullableColumn) Nulls() []uint8 { return c.nulls }

func ptrSlice[T any](vals []T, nulls []uint8) []*T {
	out := make([]*T, len(vals))
	for i := range vals {
		if nulls[i] == 0 {
			out[i] = &vals[i]
		}
	}
	return out
}

func (c *nullableColumn) appendSame(other ColumnData) error {
	o, ok := other.(*nullableColumn)
	if !ok {
		return mergeMismatch(c, other)
	}
	if err := c.inner.appendSame(o.inner); err != nil {
		return err
	}
	c.nulls = append(c.nulls, o.nulls...)
	return nil
}

func (c *nullableColumn) encode(w *writeBuffer, t *ColumnType) error {
	if t.Kind != KindNullable {
		return typeMismatch(c, t)
	}
	w.b = append(w.b, c.nulls...)
	return c.inner.encode(w, t.Elem)
}

func decodeNullable(r *readBuffer, t *ColumnType, rows int) (*nullableColumn, error) {
	p, err := r.next(rows)
	if err != nil {
		return nil, err
	}
	nulls := make([]uint8, rows)
	copy(nulls, p)
	inner, err := decodeColumn(r, t.Elem, rows)
	if err != nil {
		return nil, err
	}
	return &nullableColumn{nulls: nulls, inner: inner}, nil
}

// arrayColumn stores per-row cumulative element counts followed by the
// flattened element payload.
type arrayColumn struct {
	offsets []uint64
	elem    ColumnData
}

func arrayOf[T any](rows [][]T) (*arrayColumn, error) {
	offsets := make([]uint64, len(rows))
	var flat []T
	var total uint64
	for i, row := range rows {
		total += uint64(len(row))
		offsets[i] = total
		flat = append(flat, row...)
	}
	if flat == nil {
		flat = []T{}
	}
	elem, err := newColumnData(flat)
	if err != nil {
		return nil, err
	}
	return &arrayColumn{offsets: offsets, elem: elem}, nil
}

func (c *arrayColumn) Rows() int { return len(c.offsets) }

func (c *arrayColumn) bounds(i int) (int, int) {
	start := 0
	if i > 0 {
		start = int(c.offsets[i-1])
	}
	return start, int(c.offsets[i])
}

func (c *arrayColumn) Row(i int) any {
	start, end := c.bounds(i)
	return subSlice(c.elem.Values(), start, end)
}

func (c *arrayColumn) Values() any {
	switch data := c.elem.Values().(type) {
	case []uint8:
		return nestSlice(data, c.offsets)
	case []uint16:
		return nestSlice(data, c.offsets)
	case []uint32:
		return nestSlice(data, c.offsets)
	case []uint64:
		return nestSlice(data, c.offsets)
	case []int8:
		return nestSlice(data, c.offsets)
	case []int16:
		return nestSlice(data, c.offsets)
	case []int32:
		return nestSlice(data, c.offsets)
	case []int64:
		return nestSlice(data, c.offsets)
	case []float32:
		return nestSlice(data, c.offsets)
	case []float64:
		return nestSlice(data, c.offsets)
	case []bool:
		return nestSlice(data, c.offsets)
	case []string:
		return nestSlice(data, c.offsets)
	case []time.Time:
		return nestSlice(data, c.offsets)
	case []uuid.UUID:
		return nestSlice(data, c.offsets)
	}
	return nil
}

// Offsets reports the cumulative element counts.
func (c *arrayColumn) Offsets() []uint64 { return c.offsets }

func subSlice(vals any, a, b int) any {
	switch data := vals.(type) {
	case []uint8:
		return data[a:b]
	case []uint16:
		return data[a:b]
	case []uint32:
		return data[a:b]
	case []uint64:
		return data[a:b]
	case []int8:
		return data[a:b]
	case []int16:
		return data[a:b]
	case []int32:
		return data[a:b]
	case []int64:
		return data[a:b]
	case []float32:
		return data[a:b]
	case []float64:
		return data[a:b]
	case []bool:
		return data[a:b]
	case []string:
		return data[a:b]
	case []time.Time:
		return data[a:b]
	case []uuid.UUID:
		return data[a:b]
	}
	return nil
}

func nestSlice[T any](vals []T, offsets []uint64) [][]T {
	out := make([][]T, len(offsets))
	start := uint64(0)
	for i, end := range offsets {
		out[i] = vals[start:end]
		start = end
	}
	return out
}

func (c *arrayColumn) appendSame(other ColumnData) error {
	o, ok := other.(*arrayColumn)
	if !ok {
		return mergeMismatch(c, other)
	}
	if err := c.elem.appendSame(o.elem); err != nil {
		return err
	}
	base := uint64(0)
	if len(c.offsets) > 0 {
		base = c.offsets[len(c.offsets)-1]
	}
	for _, off := range o.offsets {
		c.offsets = append(c.offsets, base+off)
	}
	return nil
}

func (c *arrayColumn) encode(w *writeBuffer, t *ColumnType) error {
	if t.Kind != KindArray {
		return typeMismatch(c, t)
	}
	for _, off := range c.offsets {
		w.uint64(off)
	}
	return c.elem.encode(w, t.Elem)
}

func decodeArray(r *readBuffer, t *ColumnType, rows int) (*arrayColumn, error) {
	offsets := make([]uint64, rows)
	for i := range offsets {
		v, err := r.uint64()
		if err != nil {
			return nil, err
		}
		offsets[i] = v
	}
	total := 0
	if rows > 0 {
		total = int(offsets[rows-1])
	}
	elem, err := decodeColumn(r, t.Elem, total)
	if err != nil {
		return nil, err
	}
	return &arrayColumn{offsets: offsets, elem: elem}, nil
}

// mapColumn mirrors the array layout: offsets, flattened keys, flattened
// values. Only Map(String, String) is supported.
type mapColumn struct {
	offsets []uint64
	keys    *stringColumn
	values  *stringColumn
}

func mapOf(rows []map[string]string) *mapColumn {
	offsets := make([]uint64, len(rows))
	keys := &stringColumn{}
	values := &stringColumn{}
	var total uint64
	for i, m := range rows {
		total += uint64(len(m))
		offsets[i] = total
		for k, v := range m {
			keys.data = append(keys.data, k)
			values.data = append(values.data, v)
		}
	}
	return &mapColumn{offsets: offsets, keys: keys, values: values}
}

func (c *mapColumn) Rows() int { return len(c.offsets) }

func (c *mapColumn) Row(i int) any {
	start := 0
	if i > 0 {
		start = int(c.offsets[i-1])
	}
	end := int(c.offsets[i])
	m := make(map[string]string, end-start)
	for j := start; j < end; j++ {
		m[c.keys.data[j]] = c.values.data[j]
	}
	return m
}

func (c *mapColumn) Values() any {
	out := make([]map[string]string, len(c.offsets))
	for i := range out {
		out[i] = c.Row(i).(map[string]string)
	}
	return out
}

func (c *mapColumn) appendSame(other ColumnData) error {
	o, ok := other.(*mapColumn)
	if !ok {
		return mergeMismatch(c, other)
	}
	if err := c.keys.appendSame(o.keys); err != nil {
		return err
	}
	if err := c.values.appendSame(o.values); err != nil {
		return err
	}
	base := uint64(0)
	if len(c.offsets) > 0 {
		base = c.offsets[len(c.offsets)-1]
	}
	for _, off := range o.offsets {
		c.offsets = append(c.offsets, base+off)
	}
	return nil
}

func (c *mapColumn) encode(w *writeBuffer, t *ColumnType) error {
	if t.Kind != KindMap {
		return typeMismatch(c, t)
	}
	for _, off := range c.offsets {
		w.uint64(off)
	}
	if err := c.keys.encode(w, t.Key); err != nil {
		return err
	}
	return c.values.encode(w, t.Value)
}

func decodeMap(r *readBuffer, t *ColumnType, rows int) (*mapColumn, error) {
	offsets := make([]uint64, rows)
	for i := range offsets {
		v, err := r.uint64()
		if err != nil {
			return nil, err
		}
		offsets[i] = v
	}
	total := 0
	if rows > 0 {
		total = int(offsets[rows-1])
	}
	keys, err := decodeStrings(r, t.Key, total)
	if err != nil {
		return nil, err
	}
	values, err := decodeStrings(r, t.Value, total)
	if err != nil {
		return nil, err
	}
	return &mapColumn{offsets: offsets, keys: keys, values: values}, nil
}

// decodeColumn reads rows values of type t from r.
func decodeColumn(r *readBuffer, t *ColumnType, rows int) (ColumnData, error) {
	switch t.Kind {
	case KindUInt8:
		return decodeNums[uint8](r, rows)
	case KindUInt16:
		return decodeNums[uint16](r, rows)
	case KindUInt32:
		return decodeNums[uint32](r, rows)
	case KindUInt64:
		return decodeNums[uint64](r, rows)
	case KindInt8:
		return decodeNums[int8](r, rows)
	case KindInt16:
		return decodeNums[int16](r, rows)
	case KindInt32:
		return decodeNums[int32](r, rows)
	case KindInt64:
		return decodeNums[int64](r, rows)
	case KindFloat32:
		return decodeNums[float32](r, rows)
	case KindFloat64:
		return decodeNums[float64](r, rows)
	case KindBool:
		return decodeBools(r, rows)
	case KindString, KindFixedString, KindEnum8, KindEnum16:
		return decodeStrings(r, t, rows)
	case KindDate, KindDate32, KindDateTime, KindDateTime64:
		return decodeTimes(r, t, rows)
	case KindUUID:
		return decodeUUIDs(r, rows)
	case KindNullable:
		return decodeNullable(r, t, rows)
	case KindArray:
		return decodeArray(r, t, rows)
	case KindMap:
		return decodeMap(r, t, rows)
	}
	return nil, errors.Wrapf(ErrDataType, "cannot decode column type %s", t)
}

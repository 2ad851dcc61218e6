// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// TypeKind enumerates the column types the client understands.
type TypeKind uint8

const (
	KindFloat32 TypeKind = iota
	KindFloat64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindUUID
	KindString
	KindFixedString
	KindBool
	KindDate
	KindDate32
	KindDateTime
	KindDateTime64
	KindEnum8
	KindEnum16
	KindArray
	KindNullable
	KindMap
)

// EnumPair is one 'name' = value entry of an Enum8/Enum16 declaration.
// Declaration order is preserved so the textual form round-trips.
type EnumPair struct {
	Name  string
	Value int16
}

// ColumnType is a recursive type descriptor matching the server's textual
// form, e.g. Nullable(UInt32), Array(Enum8('hi' = -1, 'bye' = 5)),
// Map(String, String), DateTime64(3, 'GMT').
type ColumnType struct {
	Kind     TypeKind
	FixedLen int        // FixedString byte length
	Prec     int        // DateTime64 precision
	Timezone string     // DateTime / DateTime64 timezone argument
	Enum     []EnumPair // Enum8 / Enum16 mapping
	Elem     *ColumnType
	Key      *ColumnType // Map key
	Value    *ColumnType // Map value

	src string // textual form as parsed, if any
}

var scalarTypeNames = map[string]TypeKind{
	"Float32":  KindFloat32,
	"Float64":  KindFloat64,
	"Int8":     KindInt8,
	"Int16":    KindInt16,
	"Int32":    KindInt32,
	"Int64":    KindInt64,
	"UInt8":    KindUInt8,
	"UInt16":   KindUInt16,
	"UInt32":   KindUInt32,
	"UInt64":   KindUInt64,
	"UUID":     KindUUID,
	"String":   KindString,
	"Bool":     KindBool,
	"Date":     KindDate,
	"Date32":   KindDate32,
	"DateTime": KindDateTime,
}

// ParseColumnType parses the server's textual type descriptor. The longest
// matching prefix wins, so Nullable(Array(...)) is accepted while
// Array(Nullable(...)) is rejected by the containment rules.
func ParseColumnType(s string) (*ColumnType, error) {
	t, err := parseColumnType(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	t.src = strings.TrimSpace(s)
	return t, nil
}

func parseColumnType(s string) (*ColumnType, error) {
	if kind, ok := scalarTypeNames[s]; ok {
		return &ColumnType{Kind: kind}, nil
	}

	inner, ok := parenArg(s, "Nullable(")
	if ok {
		elem, err := parseColumnType(inner)
		if err != nil {
			return nil, err
		}
		if elem.Kind == KindNullable {
			return nil, errors.Wrapf(ErrDataType, "nested Nullable in %q", s)
		}
		return &ColumnType{Kind: KindNullable, Elem: elem}, nil
	}

	if inner, ok = parenArg(s, "Array("); ok {
		elem, err := parseColumnType(inner)
		if err != nil {
			return nil, err
		}
		if elem.Kind == KindNullable {
			return nil, errors.Wrapf(ErrDataType, "Array cannot contain Nullable in %q", s)
		}
		return &ColumnType{Kind: KindArray, Elem: elem}, nil
	}

	if inner, ok = parenArg(s, "Map("); ok {
		args := splitTopLevel(inner)
		if len(args) != 2 {
			return nil, errors.Wrapf(ErrDataType, "Map needs two type arguments in %q", s)
		}
		key, err := parseColumnType(args[0])
		if err != nil {
			return nil, err
		}
		value, err := parseColumnType(args[1])
		if err != nil {
			return nil, err
		}
		if key.Kind != KindString || value.Kind != KindString {
			return nil, errors.Wrapf(ErrDataType, "only Map(String, String) is supported, got %q", s)
		}
		return &ColumnType{Kind: KindMap, Key: key, Value: value}, nil
	}

	if inner, ok = parenArg(s, "FixedString("); ok {
		n, err := strconv.Atoi(strings.TrimSpace(inner))
		if err != nil || n <= 0 {
			return nil, errors.Wrapf(ErrDataType, "bad FixedString length in %q", s)
		}
		return &ColumnType{Kind: KindFixedString, FixedLen: n}, nil
	}

	// DateTime64( before DateTime(, longest prefix first.
	if inner, ok = parenArg(s, "DateTime64("); ok {
		args := splitTopLevel(inner)
		if len(args) < 1 || len(args) > 2 {
			return nil, errors.Wrapf(ErrDataType, "bad DateTime64 arguments in %q", s)
		}
		prec, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil || prec < 0 || prec > 9 {
			return nil, errors.Wrapf(ErrDataType, "bad DateTime64 precision in %q", s)
		}
		t := &ColumnType{Kind: KindDateTime64, Prec: prec}
		if len(args) == 2 {
			if t.Timezone, err = parseQuoted(strings.TrimSpace(args[1])); err != nil {
				return nil, errors.Wrapf(err, "bad DateTime64 timezone in %q", s)
			}
		}
		return t, nil
	}

	if inner, ok = parenArg(s, "DateTime("); ok {
		tz, err := parseQuoted(strings.TrimSpace(inner))
		if err != nil {
			return nil, errors.Wrapf(err, "bad DateTime timezone in %q", s)
		}
		return &ColumnType{Kind: KindDateTime, Timezone: tz}, nil
	}

	if inner, ok = parenArg(s, "Enum8("); ok {
		pairs, err := parseEnumPairs(inner, -128, 127)
		if err != nil {
			return nil, errors.Wrapf(err, "in %q", s)
		}
		return &ColumnType{Kind: KindEnum8, Enum: pairs}, nil
	}

	if inner, ok = parenArg(s, "Enum16("); ok {
		pairs, err := parseEnumPairs(inner, -32768, 32767)
		if err != nil {
			return nil, errors.Wrapf(err, "in %q", s)
		}
		return &ColumnType{Kind: KindEnum16, Enum: pairs}, nil
	}

	return nil, errors.Wrapf(ErrDataType, "unknown column type %q", s)
}

// parenArg returns the text between prefix and a trailing ")".
func parenArg(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(prefix) : len(s)-1], true
}

// splitTopLevel splits on commas outside parentheses and quotes.
func splitTopLevel(s string) []string {
	var (
		parts  []string
		depth  int
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quoted:
			if c == '\\' {
				i++
			} else if c == '\'' {
				quoted = false
			}
		case c == '\'':
			quoted = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// parseQuoted parses a '...'-quoted token with \' and \\ escapes.
func parseQuoted(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", errors.Wrapf(ErrDataType, "expected quoted token, got %q", s)
	}
	body := s[1 : len(s)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		sb.WriteByte(body[i])
	}
	return sb.String(), nil
}

func parseEnumPairs(s string, min, max int) ([]EnumPair, error) {
	args := splitTopLevel(s)
	pairs := make([]EnumPair, 0, len(args))
	for _, arg := range args {
		eq := strings.LastIndexByte(arg, '=')
		if eq < 0 {
			return nil, errors.Wrapf(ErrDataType, "bad enum entry %q", arg)
		}
		name, err := parseQuoted(strings.TrimSpace(arg[:eq]))
		if err != nil {
			return nil, err
		}
		v, err := strconv.Atoi(strings.TrimSpace(arg[eq+1:]))
		if err != nil || v < min || v > max {
			return nil, errors.Wrapf(ErrDataType, "bad enum value in %q", arg)
		}
		pairs = append(pairs, EnumPair{Name: name, Value: int16(v)})
	}
	return pairs, nil
}

// enumCode maps a name to its declared value.
func (t *ColumnType) enumCode(name string) (int16, bool) {
	for _, p := range t.Enum {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

// enumName maps a declared value back to its name.
func (t *ColumnType) enumName(code int16) (string, bool) {
	for _, p := range t.Enum {
		if p.Value == code {
			return p.Name, true
		}
	}
	return "", false
}

// String renders the descriptor in the server's textual form. A descriptor
// produced by ParseColumnType keeps the exact source text.
func (t *ColumnType) String() string {
	if t.src != "" {
		return t.src
	}
	switch t.Kind {
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindUInt8:
		return "UInt8"
	case KindUInt16:
		return "UInt16"
	case KindUInt32:
		return "UInt32"
	case KindUInt64:
		return "UInt64"
	case KindUUID:
		return "UUID"
	case KindString:
		return "String"
	case KindFixedString:
		return "FixedString(" + strconv.Itoa(t.FixedLen) + ")"
	case KindBool:
		return "Bool"
	case KindDate:
		return "Date"
	case KindDate32:
		return "Date32"
	case KindDateTime:
		if t.Timezone != "" {
			return "DateTime(" + quoteEnumName(t.Timezone) + ")"
		}
		return "DateTime"
	case KindDateTime64:
		if t.Timezone != "" {
			return "DateTime64(" + strconv.Itoa(t.Prec) + ", " + quoteEnumName(t.Timezone) + ")"
		}
		return "DateTime64(" + strconv.Itoa(t.Prec) + ")"
	case KindEnum8, KindEnum16:
		var sb strings.Builder
		if t.Kind == KindEnum8 {
			sb.WriteString("Enum8(")
		} else {
			sb.WriteString("Enum16(")
		}
		for i, p := range t.Enum {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteEnumName(p.Name))
			sb.WriteString(" = ")
			sb.WriteString(strconv.Itoa(int(p.Value)))
		}
		sb.WriteByte(')')
		return sb.String()
	case KindArray:
		return "Array(" + t.Elem.String() + ")"
	case KindNullable:
		return "Nullable(" + t.Elem.String() + ")"
	case KindMap:
		return "Map(" + t.Key.String() + ", " + t.Value.String() + ")"
	}
	return "Unknown"
}

func quoteEnumName(name string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for i := 0; i < len(name); i++ {
		if name[i] == '\'' || name[i] == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(name[i])
	}
	sb.WriteByte('\'')
	return sb.String()
}

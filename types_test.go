// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"errors"
	"testing"
)

func TestParseColumnTypeRoundTrip(t *testing.T) {
	cases := []string{
		"UInt8", "UInt16", "UInt32", "UInt64",
		"Int8", "Int16", "Int32", "Int64",
		"Float32", "Float64",
		"String", "Bool", "UUID",
		"Date", "Date32", "DateTime",
		"FixedString(7)",
		"DateTime('UTC')",
		"DateTime64(3)",
		"DateTime64(3, 'GMT')",
		"Enum8('hi' = -1, 'bye' = 5)",
		"Enum16('a' = 1, 'b' = 1000)",
		"Nullable(UInt32)",
		"Nullable(String)",
		"Array(Int32)",
		"Array(Enum8('hi' = -1, 'bye' = 5))",
		"Nullable(Array(Int32))",
		"Map(String, String)",
	}
	for _, s := range cases {
		ct, err := ParseColumnType(s)
		if err != nil {
			t.Errorf("ParseColumnType(%q): %v", s, err)
			continue
		}
		if got := ct.String(); got != s {
			t.Errorf("ParseColumnType(%q).String() = %q", s, got)
		}
	}
}

func TestParseColumnTypeFormatted(t *testing.T) {
	// formatting a descriptor built without source text
	ct := &ColumnType{Kind: KindEnum8, Enum: []EnumPair{{"hi", -1}, {"bye", 5}}}
	if got, want := ct.String(), "Enum8('hi' = -1, 'bye' = 5)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	ct = &ColumnType{Kind: KindMap, Key: &ColumnType{Kind: KindString}, Value: &ColumnType{Kind: KindString}}
	if got, want := ct.String(), "Map(String, String)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseColumnTypeRejects(t *testing.T) {
	cases := []string{
		"Nullable(Nullable(UInt8))",
		"Array(Nullable(UInt8))",
		"Map(String, UInt8)",
		"Map(UInt8, String)",
		"Map(String)",
		"FixedString(0)",
		"FixedString(x)",
		"DateTime64(10)",
		"Enum8('hi' = 300)",
		"Enum8(hi = 1)",
		"Whatever",
		"Array(",
	}
	for _, s := range cases {
		if _, err := ParseColumnType(s); !errors.Is(err, ErrDataType) {
			t.Errorf("ParseColumnType(%q): got %v, want data type error", s, err)
		}
	}
}

func TestParseEnumEscapedQuote(t *testing.T) {
	ct, err := ParseColumnType(`Enum8('one' = 1, 'two\'s' = 2)`)
	if err != nil {
		t.Fatal(err)
	}
	if code, ok := ct.enumCode("two's"); !ok || code != 2 {
		t.Errorf("enumCode(two's) = %d, %v", code, ok)
	}
}

func TestEnumLookup(t *testing.T) {
	ct, err := ParseColumnType("Enum8('hi' = -1, 'bye' = 5)")
	if err != nil {
		t.Fatal(err)
	}
	if code, ok := ct.enumCode("hi"); !ok || code != -1 {
		t.Errorf("enumCode(hi) = %d, %v", code, ok)
	}
	if name, ok := ct.enumName(5); !ok || name != "bye" {
		t.Errorf("enumName(5) = %q, %v", name, ok)
	}
	if _, ok := ct.enumCode("missing"); ok {
		t.Error("enumCode(missing) should fail")
	}
}

func TestParseNestedTypes(t *testing.T) {
	ct, err := ParseColumnType("Array(Array(UInt8))")
	if err != nil {
		t.Fatal(err)
	}
	if ct.Kind != KindArray || ct.Elem.Kind != KindArray || ct.Elem.Elem.Kind != KindUInt8 {
		t.Errorf("unexpected structure for Array(Array(UInt8))")
	}

	ct, err = ParseColumnType("Nullable(Enum16('x' = 1))")
	if err != nil {
		t.Fatal(err)
	}
	if ct.Kind != KindNullable || ct.Elem.Kind != KindEnum16 {
		t.Errorf("unexpected structure for Nullable(Enum16(...))")
	}
}

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

func TestCorrelatorFIFO(t *testing.T) {
	var c correlator
	w1, err := c.enqueue()
	if err != nil {
		t.Fatal(err)
	}
	w2, err := c.enqueue()
	if err != nil {
		t.Fatal(err)
	}
	if !c.complete(waiterResult{value: "first"}) {
		t.Fatal("complete reported no waiter")
	}
	if !c.complete(waiterResult{value: "second"}) {
		t.Fatal("complete reported no waiter")
	}
	if r := w1.wait(); r.value != "first" || r.err != nil {
		t.Errorf("w1 = %v, %v", r.value, r.err)
	}
	if r := w2.wait(); r.value != "second" || r.err != nil {
		t.Errorf("w2 = %v, %v", r.value, r.err)
	}
}

func TestCorrelatorFailAll(t *testing.T) {
	var c correlator
	waiters := make([]*waiter, 5)
	for i := range waiters {
		w, err := c.enqueue()
		if err != nil {
			t.Fatal(err)
		}
		waiters[i] = w
	}
	c.failAll(ErrClosed)
	for i, w := range waiters {
		r := w.wait()
		if !errors.Is(r.err, ErrClosed) {
			t.Errorf("waiter %d: got %v, want ErrClosed", i, r.err)
		}
	}
}

func TestCorrelatorCompleteThenFail(t *testing.T) {
	var c correlator
	w1, _ := c.enqueue()
	w2, _ := c.enqueue()
	w3, _ := c.enqueue()

	if !c.complete(waiterResult{value: 1}) {
		t.Fatal("complete reported no waiter")
	}
	c.failAll(ErrClosed)

	if r := w1.wait(); r.err != nil || r.value != 1 {
		t.Errorf("w1 = %v, %v; want fulfilled", r.value, r.err)
	}
	if r := w2.wait(); !errors.Is(r.err, ErrClosed) {
		t.Errorf("w2 = %v, want ErrClosed", r.err)
	}
	if r := w3.wait(); !errors.Is(r.err, ErrClosed) {
		t.Errorf("w3 = %v, want ErrClosed", r.err)
	}
}

func TestCorrelatorPoisonedAfterFailure(t *testing.T) {
	var c correlator
	c.failAll(ErrClosed)
	if _, err := c.enqueue(); !errors.Is(err, ErrClosed) {
		t.Errorf("enqueue after failure: got %v, want ErrClosed", err)
	}
}

func TestCorrelatorCompleteWithoutWaiter(t *testing.T) {
	var c correlator
	if c.complete(waiterResult{}) {
		t.Error("complete on empty queue reported a waiter")
	}
}

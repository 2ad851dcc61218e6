// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Conn is a single connection to a ClickHouse server. One request may be
// outstanding at a time; a second concurrent operation fails with
// ErrNotReady. All methods are safe for concurrent use.
type Conn struct {
	cfg *Config
	log *zap.Logger

	netConn net.Conn
	dec     decoder // owned by readLoop

	mu       sync.Mutex
	machine  machine
	wbuf     writeBuffer
	server   ServerInfo
	revision uint64

	pending correlator
	closed  atomic.Bool
}

// Connect dials the server, performs the TLS handshake when configured, and
// exchanges Hello. The returned connection is ready for use.
func Connect(ctx context.Context, cfg *Config) (*Conn, error) {
	cfg = cfg.normalized()

	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	netConn, err := d.DialContext(ctx, "tcp", cfg.hostPort())
	if err != nil {
		if isTimeout(err) {
			return nil, errors.Wrap(ErrConnectTimeout, err.Error())
		}
		return nil, errors.Wrap(err, "dial")
	}
	if tc, ok := netConn.(*net.TCPConn); ok {
		if err := tc.SetKeepAlive(true); err != nil {
			netConn.Close()
			return nil, errors.Wrap(err, "enable keep-alive")
		}
	}
	if cfg.TLS != nil {
		tlsCfg := cfg.TLS.Clone()
		if tlsCfg.ServerName == "" && !tlsCfg.InsecureSkipVerify {
			host, _, _ := net.SplitHostPort(cfg.hostPort())
			tlsCfg.ServerName = host
		}
		tlsConn := tls.Client(netConn, tlsCfg)
		hctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err = tlsConn.HandshakeContext(hctx)
		cancel()
		if err != nil {
			netConn.Close()
			if isTimeout(err) {
				return nil, errors.Wrap(ErrConnectTimeout, err.Error())
			}
			return nil, errors.Wrap(err, "tls handshake")
		}
		netConn = tlsConn
	}

	c := &Conn{cfg: cfg, log: cfg.Logger, netConn: netConn}
	c.machine = machine{state: stateNotConnected, log: c.log, onProgress: cfg.OnProgress}
	go c.readLoop()

	v, err := c.roundTrip(ctx, stateConnecting, nil, cfg.ConnectTimeout, ErrConnectTimeout, func(w *writeBuffer) {
		writeHello(w, cfg)
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	info, ok := v.(ServerInfo)
	if !ok {
		c.Close()
		return nil, errors.Wrap(ErrProtocol, "server info missing after hello")
	}
	c.log.Debug("connected", zap.String("server", info.String()))
	return c, nil
}

// Query runs a statement that returns rows and merges the received data
// blocks into one result.
func (c *Conn) Query(ctx context.Context, sql string) (*Result, error) {
	v, err := c.roundTrip(ctx, stateAwaitingQueryResult, nil, 0, ErrQueryTimeout, func(w *writeBuffer) {
		writeQuery(w, c.revision, newQueryID(), sql)
	})
	if err != nil {
		return nil, err
	}
	res, ok := v.(*Result)
	if !ok {
		return nil, errors.Wrap(ErrProtocol, "query completed without result")
	}
	return res, nil
}

// Command runs a statement that returns no rows.
func (c *Conn) Command(ctx context.Context, sql string) error {
	_, err := c.roundTrip(ctx, stateAwaitingConfirmation, nil, 0, ErrQueryTimeout, func(w *writeBuffer) {
		writeQuery(w, c.revision, newQueryID(), sql)
	})
	return err
}

// Insert streams cols into table. Column names must match the target
// schema in insertion order; the server-declared types drive the encoding.
func (c *Conn) Insert(ctx context.Context, table string, cols []Column) error {
	if len(cols) == 0 {
		return errors.Wrap(ErrDataType, "insert needs at least one column")
	}
	rows := cols[0].Data.Rows()
	names := make([]string, len(cols))
	for i, col := range cols {
		if col.Name == "" {
			return errors.Wrap(ErrDataType, "insert column with empty name")
		}
		if col.Data.Rows() != rows {
			return errors.Wrapf(ErrDataType, "column %q has %d rows, expected %d", col.Name, col.Data.Rows(), rows)
		}
		names[i] = col.Name
	}
	sql := "INSERT INTO " + table + " (" + strings.Join(names, ", ") + ") VALUES"
	_, err := c.roundTrip(ctx, stateAwaitingToSendData, cols, 0, ErrQueryTimeout, func(w *writeBuffer) {
		writeQuery(w, c.revision, newQueryID(), sql)
	})
	return err
}

// Ping checks that the server responds.
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, stateAwaitingPong, nil, 0, ErrQueryTimeout, func(w *writeBuffer) {
		writePing(w)
	})
	return err
}

// Close shuts the connection down. Outstanding waiters fail with ErrClosed.
// Closing twice is a no-op.
func (c *Conn) Close() error {
	c.fatal(ErrClosed)
	return nil
}

// IsClosed reports whether the connection has been closed by the user, a
// timeout or a transport failure.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// ServerInfo returns the handshake result.
func (c *Conn) ServerInfo() ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// roundTrip validates the state transition, enqueues a waiter, writes the
// outbound frames and blocks until the terminal response, the deadline or
// ctx. Deadline and ctx expiry close the connection: the protocol has no
// targeted cancellation.
func (c *Conn) roundTrip(ctx context.Context, next connState, insertCols []Column, timeout time.Duration, timeoutErr error, build func(*writeBuffer)) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.mu.Lock()
	if err := c.machine.start(next, insertCols); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	w, err := c.pending.enqueue()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.wbuf.reset()
	build(&c.wbuf)
	_, err = c.netConn.Write(c.wbuf.b)
	c.mu.Unlock()
	if err != nil {
		c.fatal(errors.Wrap(ErrClosed, err.Error()))
		r := w.wait()
		return nil, r.err
	}

	if timeout <= 0 {
		timeout = c.cfg.QueryTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-w.ch:
		return r.value, r.err
	case <-timer.C:
		c.fatal(timeoutErr)
		<-w.ch
		return nil, timeoutErr
	case <-ctx.Done():
		// a context deadline is a per-call timeout override
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = timeoutErr
		}
		c.fatal(err)
		<-w.ch
		return nil, err
	}
}

// readLoop owns the socket's read side: it feeds the decoder and drives the
// state machine until the connection dies.
func (c *Conn) readLoop() {
	chunk := make([]byte, defaultBufSize)
	for {
		if c.cfg.ReadTimeout > 0 {
			_ = c.netConn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		n, err := c.netConn.Read(chunk)
		if n > 0 {
			c.dec.feed(chunk[:n])
			if derr := c.drain(); derr != nil {
				c.fatal(derr)
				return
			}
		}
		if err == nil {
			continue
		}
		if c.closed.Load() {
			return
		}
		if isTimeout(err) {
			c.mu.Lock()
			idle := c.machine.state == stateReady
			c.mu.Unlock()
			if idle {
				// keep-alive: nothing was due
				continue
			}
			c.fatal(ErrReadTimeout)
			return
		}
		// stream closed; anything left in the decoder is debris after a
		// rejected query
		if c.dec.pending() {
			c.log.Debug("discarding unread bytes on close", zap.Int("bytes", len(c.dec.buf)))
		}
		c.fatal(errors.Wrap(ErrClosed, err.Error()))
		return
	}
}

func (c *Conn) drain() error {
	for {
		f, err := c.dec.next(c.revision)
		if err != nil || f == nil {
			return err
		}
		if err := c.dispatch(f); err != nil {
			return err
		}
	}
}

// dispatch runs one frame through the state machine, performs the insert
// block round-trip when asked, and completes the oldest waiter on a
// terminal emission.
func (c *Conn) dispatch(f any) error {
	c.mu.Lock()
	em, reply, err := c.machine.handleFrame(f, c.revision)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if hf, ok := f.(helloFrame); ok {
		c.server = hf.info
		c.revision = hf.info.Revision
	}
	if reply != nil {
		c.wbuf.reset()
		if err := writeData(&c.wbuf, c.revision, reply); err != nil {
			c.mu.Unlock()
			return err
		}
		// a trailing empty block tells the server the client is done
		_ = writeData(&c.wbuf, c.revision, newBlock(nil))
		if _, err := c.netConn.Write(c.wbuf.b); err != nil {
			c.mu.Unlock()
			return errors.Wrap(ErrClosed, err.Error())
		}
	}
	c.mu.Unlock()

	if em != nil {
		if !c.pending.complete(waiterResult{value: em.value, err: em.err}) {
			c.log.Warn("terminal frame with no outstanding request")
		}
	}
	return nil
}

// fatal closes the connection exactly once and fails every outstanding
// waiter with err.
func (c *Conn) fatal(err error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	c.machine.state = stateClosed
	c.mu.Unlock()
	c.netConn.Close()
	c.pending.failAll(err)
	if !errors.Is(err, ErrClosed) {
		c.log.Warn("connection failed", zap.Error(err))
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func newQueryID() string {
	return fmt.Sprintf("%016x", rand.Uint64())
}

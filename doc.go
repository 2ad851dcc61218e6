// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package clickhouse implements a client for the ClickHouse native TCP
// protocol on port 9000 (9440 with TLS).
//
// A connection exposes five operations: Query for statements that return
// rows, Command for statements that do not, Insert for streaming columnar
// blocks into a table, Ping and Close. One request may be outstanding per
// connection at a time; responses complete in request order.
//
//	cfg := clickhouse.NewConfig()
//	cfg.Addr = "localhost:9000"
//	conn, err := clickhouse.Connect(context.Background(), cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	res, err := conn.Query(context.Background(), "SHOW DATABASES")
//
// Data blocks are exchanged uncompressed; the client always negotiates
// compression off.
package clickhouse

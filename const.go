// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import "time"

const (
	clientName         = "Go ClickHouse Native Client"
	clientVersionMajor = 1
	clientVersionMinor = 1
	clientRevision     = 54126
)

// Client packet types.
// https://github.com/ClickHouse/ClickHouse/blob/master/src/Core/Protocol.h
const (
	clientHello  = 0
	clientQuery  = 1
	clientData   = 2
	clientCancel = 3
	clientPing   = 4
)

// Server packet types.
const (
	serverHello       = 0
	serverData        = 1
	serverException   = 2
	serverProgress    = 3
	serverPong        = 4
	serverEndOfStream = 5
	serverProfileInfo = 6
	serverTotals      = 7
	serverExtremes    = 8
)

// Protocol revisions gating optional fields on the wire.
const (
	revisionWithTemporaryTables     = 50264
	revisionWithTotalRowsInProgress = 51554
	revisionWithBlockInfo           = 51903
	revisionWithClientInfo          = 54032
	revisionWithServerTimezone      = 54058
	revisionWithQuotaKey            = 54060
)

// Query processing stage. Only Complete is ever requested.
const stageComplete = 2

// Block compression negotiation. The client always sends Disable.
const (
	compressionDisable = 0
	compressionEnable  = 1
)

const (
	defaultPort    = 9000
	defaultTLSPort = 9440

	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 90 * time.Second
	defaultQueryTimeout   = 600 * time.Second
)

// Strings above this length are rejected as malformed rather than allocated.
const maxStringSize = 0x00FFFFFF

// A VarInt64 spans at most 9 bytes on the wire.
const maxVarIntLen = 9

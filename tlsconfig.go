// Go ClickHouse Native Client - a ClickHouse client speaking the native TCP protocol
//
// Copyright 2024 The Go-ClickHouse-Native-Client Authors. All rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package clickhouse

import (
	"crypto/tls"
	"sync"

	"github.com/go-faster/errors"
)

var (
	tlsConfigMu  sync.RWMutex
	tlsConfigMap = make(map[string]*tls.Config)
)

// RegisterTLSConfig stores a custom TLS configuration under a key so DSNs
// can refer to it with secure=<key>. The boolean spellings are reserved.
func RegisterTLSConfig(key string, config *tls.Config) error {
	switch key {
	case "true", "false", "1", "0", "t", "f", "T", "F", "TRUE", "FALSE", "True", "False":
		return errors.Errorf("key %q is reserved", key)
	}
	tlsConfigMu.Lock()
	tlsConfigMap[key] = config.Clone()
	tlsConfigMu.Unlock()
	return nil
}

// DeregisterTLSConfig removes a configuration registered with
// RegisterTLSConfig.
func DeregisterTLSConfig(key string) {
	tlsConfigMu.Lock()
	delete(tlsConfigMap, key)
	tlsConfigMu.Unlock()
}

func getTLSConfig(key string) (*tls.Config, bool) {
	tlsConfigMu.RLock()
	config, ok := tlsConfigMap[key]
	tlsConfigMu.RUnlock()
	if !ok {
		return nil, false
	}
	return config.Clone(), true
}

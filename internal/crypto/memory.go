// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/subtle"
	"runtime"
	"sync"
)

// ZeroBytes overwrites b with zeros in a way the compiler will not elide.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// Passphrase holds secret bytes until Destroy is called.
type Passphrase struct {
	mu   sync.RWMutex
	data []byte
}

// NewPassphrase copies b; the caller may zero its own slice afterwards.
func NewPassphrase(b []byte) *Passphrase {
	data := make([]byte, len(b))
	copy(data, b)
	return &Passphrase{data: data}
}

// WithBytes calls fn with the secret. fn must not retain the slice.
func (p *Passphrase) WithBytes(fn func([]byte) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(p.data)
}

// Destroy zeroes the secret. The Passphrase is empty afterwards.
func (p *Passphrase) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	ZeroBytes(p.data)
	p.data = nil
}

// IsEmpty reports whether no secret is held.
func (p *Passphrase) IsEmpty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data) == 0
}

// Package sloghooks logs cachekit hook events to a *slog.Logger.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/cachekit"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CorruptEvery   uint64
	CollectedEvery uint64
	// Optional key redactor. Defaults to an xxhash of the key.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	corruptCtr   atomic.Uint64
	collectedCtr atomic.Uint64
}

var _ cachekit.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	var b [16]byte
	const hex = "0123456789abcdef"
	sum := xxhash.Sum64String(k)
	for i := 15; i >= 0; i-- {
		b[i] = hex[sum&0xf]
		sum >>= 4
	}
	return string(b[:])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) PayloadCorrupt(adapter, key string, err error) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("cachekit.payload_corrupt",
		"adapter", adapter,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) FullFlush(adapter string) {
	if h.l == nil {
		return
	}
	h.l.Warn("cachekit.full_flush",
		"adapter", adapter,
		"msg", "clear removed every key in the backend, not only this prefix")
}

func (h *Hooks) ReferenceCollected(key string) {
	if h.l == nil || !sample(h.opts.CollectedEvery, &h.collectedCtr) {
		return
	}
	h.l.Debug("cachekit.reference_collected",
		"key", h.redact(key))
}

func (h *Hooks) ConnectFailed(adapter, target string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cachekit.connect_failed",
		"adapter", adapter,
		"target", target,
		"err", err)
}

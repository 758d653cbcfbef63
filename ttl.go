package cachekit

import "time"

type ttlKind uint8

const (
	ttlDefault ttlKind = iota
	ttlSeconds
	ttlInterval
)

// TTL is a caller supplied lifetime. The zero value is DefaultTTL.
type TTL struct {
	kind     ttlKind
	seconds  int64
	interval time.Duration
}

// DefaultTTL defers to the adapter's configured lifetime.
var DefaultTTL = TTL{}

// Seconds is an integer lifetime. Values below 1 make Set delete the key.
func Seconds(n int64) TTL { return TTL{kind: ttlSeconds, seconds: n} }

// Interval is a duration lifetime, resolved to whole seconds. It never
// triggers the delete rule.
func Interval(d time.Duration) TTL { return TTL{kind: ttlInterval, interval: d} }

func (t TTL) IsDefault() bool { return t.kind == ttlDefault }

// Deletes reports whether Set must delete instead of write. Only the integer
// form is checked, on the raw caller value.
func (t TTL) Deletes() bool { return t.kind == ttlSeconds && t.seconds < 1 }

// Resolve returns the lifetime in seconds.
func (t TTL) Resolve(defaultLifetime int64) int64 {
	switch t.kind {
	case ttlSeconds:
		return t.seconds
	case ttlInterval:
		epoch := time.Unix(0, 0)
		return epoch.Add(t.interval).Unix() - epoch.Unix()
	}
	return defaultLifetime
}

func (t TTL) String() string {
	switch t.kind {
	case ttlSeconds:
		return time.Duration(t.seconds * int64(time.Second)).String()
	case ttlInterval:
		return t.interval.String()
	}
	return "default"
}

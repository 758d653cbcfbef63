package cachekit

const (
	// DefaultLifetime is the TTL in seconds used when none is configured.
	DefaultLifetime int64 = 3600
	// DefaultSerializerName is the serializer adapters use unless configured
	// otherwise (the weak adapter never serializes).
	DefaultSerializerName = "json"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

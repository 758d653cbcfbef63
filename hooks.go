package cachekit

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Adapters call them on hot paths.
type Hooks interface {
	// A stored payload could not be decoded and was treated as a miss.
	PayloadCorrupt(adapter, key string, err error)

	// Clear flushed the whole backend (database, server or cluster), not just
	// the adapter's prefix.
	FullFlush(adapter string)

	// The referent behind a weak entry was garbage collected.
	ReferenceCollected(key string)

	// Building or pinging a backend connection failed.
	ConnectFailed(adapter, target string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) PayloadCorrupt(string, string, error) {}
func (NopHooks) FullFlush(string)                     {}
func (NopHooks) ReferenceCollected(string)            {}
func (NopHooks) ConnectFailed(string, string, error)  {}

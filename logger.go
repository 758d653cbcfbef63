package cachekit

// Fields carries structured context for a log line. Adapters always set
// "adapter"; "key", "target", "prefix" and "err" appear where relevant.
type Fields map[string]any

// Logger receives adapter diagnostics. log/zap, log/logrus and log/slog wrap
// the common logging stacks; a nil Logger in Options discards everything.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// fields starts a Fields set for this adapter.
func (b *Base) fields(kv ...any) Fields {
	f := Fields{"adapter": b.name}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}

// ConnectFailed reports a failed connection attempt to the logger and hooks
// and returns the ConnectionError to hand back to the caller.
func (b *Base) ConnectFailed(target string, err error) error {
	b.log.Error("connect failed", b.fields("target", target, "err", err))
	b.hooks.ConnectFailed(b.name, target, err)
	return &ConnectionError{Adapter: b.name, Target: target, Err: err}
}

// Connected logs a fresh backend connection.
func (b *Base) Connected() {
	b.log.Debug("connected", b.fields("prefix", b.prefix))
}

// FullFlush reports a Clear that wiped the whole backend, not only this
// adapter's prefix.
func (b *Base) FullFlush() {
	b.log.Warn("full backend flush", b.fields("prefix", b.prefix))
	b.hooks.FullFlush(b.name)
}

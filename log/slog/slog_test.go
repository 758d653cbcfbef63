package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/cachekit"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := New(stdslog.New(h))

	l.Debug("hidden", nil)
	l.Warn("full database flush", cachekit.Fields{"prefix": "ph-reds-", "adapter": "redis"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug should be filtered: %s", out)
	}
	if !strings.Contains(out, `level=WARN msg="full database flush" adapter=redis prefix=ph-reds-`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

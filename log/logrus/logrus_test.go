package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/cachekit"
)

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Info("connected", cachekit.Fields{"adapter": "memcached"})
	l.Debug("plain", nil)

	if len(hook.AllEntries()) != 2 {
		t.Fatalf("entries=%d", len(hook.AllEntries()))
	}
	e := hook.AllEntries()[0]
	if e.Level != logrus.InfoLevel || e.Message != "connected" {
		t.Fatalf("entry=%+v", e)
	}
	if e.Data["adapter"] != "memcached" || e.Data["component"] != "cachekit" {
		t.Fatalf("data=%v", e.Data)
	}
}

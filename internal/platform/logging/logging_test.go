package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_ParsesLevel(t *testing.T) {
	t.Parallel()

	log, err := New("WARN", false)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info enabled at warn level")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error disabled at warn level")
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("chatty", true); err == nil {
		t.Fatalf("New() err=nil, want error")
	}
}

package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tc := range tests {
		l, err := New(tc.in)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.in, err)
		}
		if !l.Core().Enabled(tc.want) {
			t.Fatalf("New(%q) should enable %v", tc.in, tc.want)
		}
		if tc.want > zapcore.DebugLevel && l.Core().Enabled(tc.want-1) {
			t.Fatalf("New(%q) should not enable %v", tc.in, tc.want-1)
		}
	}

	if _, err := New("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInstall(t *testing.T) {
	before := zap.L()
	restore, err := Install("debug")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if zap.L() == before {
		t.Fatal("global logger should be replaced")
	}
	restore()
	if zap.L() != before {
		t.Fatal("restore should reinstate the previous logger")
	}
}

package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		env     string
		debugOn bool
	}{
		{"prod", false},
		{"dev", true},
		{"", true},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			log, err := New(tc.env)
			if err != nil {
				t.Fatalf("New(%q): %v", tc.env, err)
			}
			if got := log.Core().Enabled(zapcore.DebugLevel); got != tc.debugOn {
				t.Fatalf("debug enabled = %v, want %v", got, tc.debugOn)
			}
		})
	}
}

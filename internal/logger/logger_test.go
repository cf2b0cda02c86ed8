package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSensitiveKeysAreRedacted(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.With("component", "auth").Info("login", "user_id", "u1", "Authorization", "Bearer abc", "jwt_token", "abc")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["user_id"] != "u1" || fields["component"] != "auth" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["Authorization"] != "[REDACTED]" || fields["jwt_token"] != "[REDACTED]" {
		t.Fatalf("expected redacted credentials, got %v", fields)
	}
}

func TestOddKeyValueCountKeepsTrailingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output %v", out)
	}
}

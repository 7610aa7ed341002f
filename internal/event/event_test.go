package event

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	env := New(AgentStarted, map[string]any{
		"execution_id": "exec-1",
		"progress":     float64(42),
	})
	env.UserID = "user-7"
	env.ThreadID = "thread-3"

	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !Equal(env, got) {
		t.Errorf("round-trip mismatch:\n sent: %+v\n got:  %+v", env, got)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"type":"mystery","data":{},"message_id":"m1"}`))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if decErr.Unwrap() == nil {
		t.Error("expected wrapped json error")
	}
}

func TestNew_UniqueMessageIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		env := New(Ping, nil)
		if seen[env.MessageID] {
			t.Fatalf("duplicate message id %s", env.MessageID)
		}
		seen[env.MessageID] = true
	}
}

func TestNew_TimestampUTC(t *testing.T) {
	env := New(StatusUpdate, nil)
	if env.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", env.Timestamp.Location())
	}
	if env.Data == nil {
		t.Error("expected non-nil data map")
	}
}

func TestKind_Valid(t *testing.T) {
	for _, k := range CriticalSequence {
		if !k.Valid() {
			t.Errorf("critical sequence kind %s should be valid", k)
		}
	}
	if Kind("orderbook_delta").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

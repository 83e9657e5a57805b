package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/fixitrock/rockdl/internal/engine/types"
)

func TestDownloadPausedMsg_Creation(t *testing.T) {
	msg := DownloadPausedMsg{
		DownloadID: "immediate-pause",
		Downloaded: 0,
	}

	if msg.Downloaded != 0 {
		t.Error("Immediate pause should have 0 bytes downloaded")
	}
}

// =============================================================================
// Message Type Assertions
// =============================================================================

func TestMessageTypes_AreDistinct(t *testing.T) {
	messages := []interface{}{
		ProgressMsg{DownloadID: "progress"},
		DownloadCompleteMsg{DownloadID: "complete"},
		DownloadErrorMsg{DownloadID: "error"},
		DownloadStartedMsg{DownloadID: "started"},
		DownloadPausedMsg{DownloadID: "paused"},
		DownloadResumedMsg{DownloadID: "resumed"},
		DownloadQueuedMsg{DownloadID: "queued"},
		DownloadRemovedMsg{DownloadID: "removed"},
	}

	typeNames := make(map[string]bool)
	names := make(map[string]bool)
	for _, msg := range messages {
		typeName := fmt.Sprintf("%T", msg)
		if typeNames[typeName] {
			t.Errorf("Duplicate type: %s", typeName)
		}
		typeNames[typeName] = true

		name := Name(msg)
		if name == "" {
			t.Errorf("%s has no event name", typeName)
		}
		if names[name] {
			t.Errorf("Duplicate event name %q", name)
		}
		names[name] = true
	}

	if len(typeNames) != 8 {
		t.Errorf("Expected 8 distinct types, got %d", len(typeNames))
	}
}

func TestName_Unknown(t *testing.T) {
	if got := Name(struct{}{}); got != "" {
		t.Errorf("Name(unknown) = %q, want empty", got)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		msg  any
		want bool
	}{
		{ProgressMsg{}, false},
		{DownloadStartedMsg{}, false},
		{DownloadResumedMsg{}, false},
		{DownloadCompleteMsg{}, true},
		{DownloadErrorMsg{}, true},
		{DownloadPausedMsg{}, true},
		{DownloadRemovedMsg{}, true},
	}
	for _, tt := range tests {
		if got := IsTerminal(tt.msg); got != tt.want {
			t.Errorf("IsTerminal(%T) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

// =============================================================================
// JSON Encoding
// =============================================================================

func TestDownloadErrorMsg_JSONRoundTrip(t *testing.T) {
	sent := DownloadErrorMsg{
		DownloadID: "err-1",
		Filename:   "rom.zip",
		Kind:       types.ErrorKindExpired,
		Err:        errors.New("HTTP 403 Forbidden"),
	}

	data, err := json.Marshal(sent)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := Decode(NameError, data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, ok := decoded.(DownloadErrorMsg)
	if !ok {
		t.Fatalf("Decode returned %T", decoded)
	}
	if got.DownloadID != sent.DownloadID || got.Filename != sent.Filename || got.Kind != sent.Kind {
		t.Errorf("Decoded = %+v, want %+v", got, sent)
	}
	if got.Err == nil || got.Err.Error() != sent.Err.Error() {
		t.Errorf("Decoded error = %v, want %v", got.Err, sent.Err)
	}
}

func TestDownloadErrorMsg_UnmarshalNonStringErr(t *testing.T) {
	var msg DownloadErrorMsg
	if err := json.Unmarshal([]byte(`{"DownloadID":"x","Err":{}}`), &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if msg.Err == nil || msg.Err.Error() != "{}" {
		t.Errorf("expected raw payload as error, got %v", msg.Err)
	}

	var empty DownloadErrorMsg
	if err := json.Unmarshal([]byte(`{"DownloadID":"x","Err":null}`), &empty); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if empty.Err != nil {
		t.Errorf("null Err should decode to nil, got %v", empty.Err)
	}
}

func TestDecode_Progress(t *testing.T) {
	sent := ProgressMsg{DownloadID: "p", Downloaded: 10, Total: 20, Speed: 1.5, Elapsed: time.Second}
	data, err := json.Marshal(sent)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(Name(sent), data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, sent) {
		t.Errorf("Decode = %+v, want %+v", got, sent)
	}
}

func TestDecode_StartedSkipsState(t *testing.T) {
	sent := DownloadStartedMsg{DownloadID: "s", State: types.NewProgressState("s", 5)}
	data, err := json.Marshal(sent)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(NameStarted, data)
	if err != nil {
		t.Fatal(err)
	}
	if got.(DownloadStartedMsg).State != nil {
		t.Error("State must not travel over the wire")
	}
}

func TestDecode_UnknownEvent(t *testing.T) {
	if _, err := Decode("bogus", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown event name")
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := Decode(NameProgress, []byte(`{`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// =============================================================================
// Channel Communication Tests
// =============================================================================

func TestProgressMsg_ChannelCommunication(t *testing.T) {
	ch := make(chan ProgressMsg, 1)

	sent := ProgressMsg{
		DownloadID: "channel-test",
		Downloaded: 1000,
		Total:      2000,
	}

	ch <- sent
	received := <-ch

	if !reflect.DeepEqual(received, sent) {
		t.Error("Message should be identical after channel send/receive")
	}
}

func TestDownloadStartedMsg_SpecialFilenames(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
	}{
		{"with spaces", "my file.zip"},
		{"unicode", "文件.zip"},
		{"special chars", "file (1).zip"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(DownloadStartedMsg{Filename: tc.filename})
			if err != nil {
				t.Fatal(err)
			}
			got, err := Decode(NameStarted, data)
			if err != nil {
				t.Fatal(err)
			}
			if got.(DownloadStartedMsg).Filename != tc.filename {
				t.Errorf("Filename not preserved: %s", tc.filename)
			}
		})
	}
}

func TestDownloadCompleteMsg_Equality(t *testing.T) {
	elapsed := 5 * time.Second
	msg1 := DownloadCompleteMsg{DownloadID: "equal", Filename: "file.zip", Elapsed: elapsed, Total: 1000}
	msg2 := DownloadCompleteMsg{DownloadID: "equal", Filename: "file.zip", Elapsed: elapsed, Total: 1000}

	if msg1 != msg2 {
		t.Error("Identical DownloadCompleteMsg should be equal")
	}
}

package bus

import (
	"context"
	"encoding/json"
	"testing"

	"crmextract/internal/dispatch"
)

func decodeReply(t *testing.T, b []byte) dispatch.Response {
	t.Helper()
	var r dispatch.Response
	if err := json.Unmarshal(b, &r); err != nil {
		t.Fatalf("Unmarshal %s: %v", b, err)
	}
	return r
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()

	var seen []dispatch.Request
	h := func(_ context.Context, req dispatch.Request) dispatch.Response {
		seen = append(seen, req)
		if req.Action != dispatch.ActionExtract {
			return dispatch.Response{Status: dispatch.StatusError}
		}
		return dispatch.Response{Status: dispatch.StatusSuccess, Count: 4}
	}

	tests := []struct {
		name       string
		payload    string
		wantStatus string
		wantCount  int
		wantCalls  int
	}{
		{"empty payload means extract", "", dispatch.StatusSuccess, 4, 1},
		{"explicit extract", `{"action":"extract"}`, dispatch.StatusSuccess, 4, 1},
		{"unknown action reaches handler", `{"action":"sync"}`, dispatch.StatusError, 0, 1},
		{"malformed payload", `{"action":`, dispatch.StatusError, 0, 0},
	}
	for _, tc := range tests {
		seen = nil
		got := decodeReply(t, HandleMessage(context.Background(), []byte(tc.payload), h))
		if got.Status != tc.wantStatus || got.Count != tc.wantCount || len(seen) != tc.wantCalls {
			t.Fatalf("%s: got %+v calls=%d", tc.name, got, len(seen))
		}
	}
}

func TestHandleMessage_ReplyShape(t *testing.T) {
	t.Parallel()

	b := HandleMessage(context.Background(), nil, func(context.Context, dispatch.Request) dispatch.Response {
		return dispatch.Response{Status: dispatch.StatusSuccess, Count: 1}
	})
	if string(b) != `{"status":"success","count":1}` {
		t.Fatalf("reply = %s", b)
	}
}

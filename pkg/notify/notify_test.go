package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	ilog "github.com/teslashibe/go-infer-trigger/internal/log"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

func TestConstructors(t *testing.T) {
	s := notify.Success(notify.TitleSuccess, "ok")
	if !s.IsSuccess() || s.IsFailure() {
		t.Errorf("Success kind = %s", s.Kind)
	}
	if s.Time.IsZero() {
		t.Error("expected timestamp")
	}

	f := notify.Failure(notify.TitleFailure, "boom")
	if !f.IsFailure() || f.IsSuccess() {
		t.Errorf("Failure kind = %s", f.Kind)
	}
}

func TestNotificationJSON(t *testing.T) {
	n := notify.Success(notify.TitleSuccess, "ok")
	n.TriggerID = "abc"
	n.Payload = map[string]any{"Message": "ok", "boxes": []any{}}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	json.Unmarshal(data, &got)

	if got["kind"] != "success" {
		t.Errorf("kind = %v", got["kind"])
	}
	if got["trigger_id"] != "abc" {
		t.Errorf("trigger_id = %v", got["trigger_id"])
	}
	if _, ok := got["error_kind"]; ok {
		t.Error("error_kind should be omitted on success")
	}
}

func TestMulti(t *testing.T) {
	a, b := notify.NewRecorder(), notify.NewRecorder()
	m := notify.Multi{a, nil, b}

	m.Notify(context.Background(), notify.Failure("t", "m"))

	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("expected each sink to receive one, got %d and %d", a.Len(), b.Len())
	}
}

func TestSinkFunc(t *testing.T) {
	var got notify.Notification
	s := notify.SinkFunc(func(_ context.Context, n notify.Notification) { got = n })
	s.Notify(context.Background(), notify.Success("t", "hello"))
	if got.Message != "hello" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := notify.NewLogSink(ilog.New(&buf, "debug", "text"))

	n := notify.Failure(notify.TitleFailure, "connection refused")
	n.ErrorKind = "network"
	sink.Notify(context.Background(), n)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("failure should log at warn: %s", out)
	}
	if !strings.Contains(out, "error_kind=network") {
		t.Errorf("missing error kind: %s", out)
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsole(&buf)
	c.Notify(context.Background(), notify.Success(notify.TitleSuccess, "3 objects"))
	c.Notify(context.Background(), notify.Failure(notify.TitleFailure, "timeout"))

	out := buf.String()
	if !strings.Contains(out, "✅ Inference Successful: 3 objects") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "❌ Inference Failed: timeout") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRecorderWait(t *testing.T) {
	r := notify.NewRecorder()

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Notify(context.Background(), notify.Success("t", "1"))
		r.Notify(context.Background(), notify.Success("t", "2"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := r.Wait(ctx, 2)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}
	if last, _ := r.Last(); last.Message != "2" {
		t.Errorf("Last = %q", last.Message)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Error("Reset should clear recorder")
	}
}

func TestRecorderWaitTimeout(t *testing.T) {
	r := notify.NewRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.Wait(ctx, 1); err == nil {
		t.Error("expected timeout error")
	}
}

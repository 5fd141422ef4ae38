package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-infer-trigger/pkg/frame"
)

func TestMockSubmitter(t *testing.T) {
	ctx := context.Background()
	mock := NewMock()

	n := mock.Submit(ctx, &frame.Frame{Data: []byte{1, 2, 3}}, 0.5)
	if !n.IsSuccess() {
		t.Fatalf("expected success, got %+v", n)
	}
	if n.Message != "Mock response" {
		t.Errorf("Message = %q", n.Message)
	}

	mock.Submit(ctx, nil, 2)

	if mock.CallCount() != 2 {
		t.Errorf("Expected 2 calls, got %d", mock.CallCount())
	}
	calls := mock.Calls()
	if calls[0].Scale != 0.5 || calls[0].FrameSize != 3 {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[1].FrameSize != 0 {
		t.Errorf("nil frame should record size 0, got %d", calls[1].FrameSize)
	}

	mock.Reset()
	if mock.CallCount() != 0 {
		t.Error("Expected 0 calls after reset")
	}
}

func TestMockWithError(t *testing.T) {
	mock := WithError(&NetworkError{Endpoint: "http://x", Err: errors.New("connection refused")})

	n := mock.Submit(context.Background(), &frame.Frame{Data: []byte{1}}, 1)
	if !n.IsFailure() {
		t.Fatalf("expected failure, got %+v", n)
	}
	if n.ErrorKind != string(KindNetwork) {
		t.Errorf("ErrorKind = %q", n.ErrorKind)
	}
	if !strings.Contains(n.Message, "connection refused") {
		t.Errorf("Message = %q", n.Message)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Apply(
		WithEndpoint("http://inference.local:8000/infer"),
		WithScale(0.25),
		WithFileName("frame.png"),
		WithTimeout(10*time.Second),
	)

	if cfg.Endpoint != "http://inference.local:8000/infer" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.Scale != 0.25 {
		t.Errorf("Scale = %v", cfg.Scale)
	}
	if cfg.FileName != "frame.png" {
		t.Errorf("FileName = %q", cfg.FileName)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Endpoint != "" {
		t.Errorf("default endpoint must be empty, got %q", cfg.Endpoint)
	}
	if cfg.Scale != 1.0 {
		t.Errorf("Scale = %v, want 1", cfg.Scale)
	}
	if cfg.FileName != "current-image.png" {
		t.Errorf("FileName = %q", cfg.FileName)
	}
	if cfg.Timeout <= 0 {
		t.Error("default timeout must bound the request")
	}
	if !errors.Is(cfg.Validate(), ErrNoEndpoint) {
		t.Error("defaults alone must not validate")
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		ok      bool
		message string
		wantErr error
	}{
		{"message only", `{"Message": "ok"}`, true, "ok", nil},
		{"extra fields", `{"Message": "done", "labels": ["car"], "score": 0.9}`, true, "done", nil},
		{"empty message", `{"Message": ""}`, true, "", nil},
		{"missing message", `{"message": "lowercase"}`, false, "", ErrMissingMessage},
		{"non-string message", `{"Message": 42}`, false, "", ErrMissingMessage},
		{"null body", `null`, false, "", ErrNotObject},
		{"array body", `["Message"]`, false, "", nil},
		{"truncated", `{"Message":`, false, "", nil},
		{"html", `<html>oops</html>`, false, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResponse([]byte(tt.body))

			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if result.Message != tt.message {
					t.Errorf("Message = %q, want %q", result.Message, tt.message)
				}
				if _, ok := result.Payload[MessageField]; !ok {
					t.Error("payload should keep the whole object")
				}
				return
			}

			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{&frame.AcquisitionError{Source: "file", Err: frame.ErrNoSurface}, KindAcquisition},
		{&NetworkError{Err: errors.New("dial tcp: refused")}, KindNetwork},
		{&RequestFailedError{StatusCode: 502}, KindRequestFailed},
		{&ParseError{Err: ErrNotObject}, KindParse},
		{ErrEmptyImage, KindInvalidRequest},
		{fmt.Errorf("%w (got 0)", ErrInvalidScale), KindInvalidRequest},
		{fmt.Errorf("submit: %w", &RequestFailedError{StatusCode: 404}), KindRequestFailed},
		{errors.New("something else"), KindUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRequestFailedError(t *testing.T) {
	tests := []struct {
		code   int
		server bool
		client bool
	}{
		{400, false, true},
		{404, false, true},
		{500, true, false},
		{503, true, false},
		{302, false, false},
	}

	for _, tt := range tests {
		err := &RequestFailedError{StatusCode: tt.code}
		if err.IsServerError() != tt.server {
			t.Errorf("%d: IsServerError = %v", tt.code, err.IsServerError())
		}
		if err.IsClientError() != tt.client {
			t.Errorf("%d: IsClientError = %v", tt.code, err.IsClientError())
		}
		if !strings.Contains(err.Error(), fmt.Sprint(tt.code)) {
			t.Errorf("%d: Error() = %q", tt.code, err.Error())
		}
	}

	err := &RequestFailedError{StatusCode: 500, Status: "500 Internal Server Error"}
	if err.Error() != "inference request failed: server returned 500 Internal Server Error" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrappedErrors(t *testing.T) {
	inner := errors.New("i/o timeout")
	ne := &NetworkError{Endpoint: "http://x", Err: inner}
	if !errors.Is(ne, inner) {
		t.Error("NetworkError should unwrap")
	}

	pe := &ParseError{Err: ErrMissingMessage}
	if !errors.Is(pe, ErrMissingMessage) {
		t.Error("ParseError should unwrap")
	}

	if !errors.Is(ErrEmptyImage, ErrInvalidRequest) || !errors.Is(ErrInvalidScale, ErrInvalidRequest) {
		t.Error("validation errors should wrap ErrInvalidRequest")
	}
}

func TestTruncate(t *testing.T) {
	if truncate("short", 10) != "short" {
		t.Error("short strings are unchanged")
	}
	if got := truncate(strings.Repeat("a", 300), maxBodyInErrs); len(got) != maxBodyInErrs {
		t.Errorf("len = %d", len(got))
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net"
	"testing"
	"time"

	ilog "github.com/teslashibe/go-infer-trigger/internal/log"
	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/inference"
)

// startStub serves the stub on a random port and returns a client for it.
func startStub(t *testing.T, cfg stubConfig) *inference.Client {
	t.Helper()

	cfg.Logger = ilog.Discard()
	if cfg.Path == "" {
		cfg.Path = "/infer"
	}
	app := newApp(cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	client, err := inference.NewClient(
		inference.WithEndpoint("http://"+ln.Addr().String()+cfg.Path),
		inference.WithLogger(ilog.Discard()),
		inference.WithTimeout(2*time.Second),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testFrame(t *testing.T, w, h int) *frame.Frame {
	t.Helper()
	data, err := frame.EncodePNG(image.NewRGBA(image.Rect(0, 0, w, h)))
	if err != nil {
		t.Fatal(err)
	}
	return &frame.Frame{Data: data, ContentType: frame.ContentType, Width: w, Height: h}
}

func TestStubRoundTrip(t *testing.T) {
	client := startStub(t, stubConfig{})

	result, err := client.Infer(context.Background(), testFrame(t, 12, 7), 1.0)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if result.Message != "Processed 12x7 image at scale 1" {
		t.Errorf("Message = %q", result.Message)
	}
	if result.Payload["filename"] != inference.DefaultFile {
		t.Errorf("filename = %v", result.Payload["filename"])
	}
	if result.Payload["scale"] != 1.0 {
		t.Errorf("scale = %v", result.Payload["scale"])
	}
}

func TestStubScaleFormatting(t *testing.T) {
	client := startStub(t, stubConfig{})

	n := client.Submit(context.Background(), testFrame(t, 1, 1), 0.25)
	if !n.IsSuccess() || n.Message != "Processed 1x1 image at scale 0.25" {
		t.Errorf("notification = %+v", n)
	}
}

func TestStubForcedStatus(t *testing.T) {
	client := startStub(t, stubConfig{Status: 503})

	_, err := client.Infer(context.Background(), testFrame(t, 1, 1), 1)
	var rf *inference.RequestFailedError
	if !errors.As(err, &rf) || rf.StatusCode != 503 {
		t.Errorf("err = %v, want 503 RequestFailedError", err)
	}
}

func TestStubRejectsGarbage(t *testing.T) {
	client := startStub(t, stubConfig{})

	f := &frame.Frame{Data: []byte("definitely not an image"), ContentType: frame.ContentType}
	n := client.Submit(context.Background(), f, 1)
	if !n.IsFailure() || n.ErrorKind != string(inference.KindRequestFailed) {
		t.Errorf("notification = %+v", n)
	}

	var detail map[string]any
	if err := json.Unmarshal([]byte(n.Detail), &detail); err != nil || detail["error"] == nil {
		t.Errorf("Detail should carry the stub's error body: %q", n.Detail)
	}
}

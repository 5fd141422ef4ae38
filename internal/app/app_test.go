package app

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-infer-trigger/internal/config"
	ilog "github.com/teslashibe/go-infer-trigger/internal/log"
	"github.com/teslashibe/go-infer-trigger/pkg/frame"
	"github.com/teslashibe/go-infer-trigger/pkg/notify"
)

func baseConfig(endpoint string) *config.Config {
	return &config.Config{
		Inference: config.InferenceConfig{Endpoint: endpoint, Scale: 1, Timeout: 2 * time.Second},
		Surface:   config.SurfaceConfig{Kind: config.SurfaceWebSocket, CaptureTimeout: time.Second},
		Server:    config.ServerConfig{ListenAddress: "127.0.0.1:0"},
		Trigger:   config.TriggerConfig{Overlap: config.OverlapAllow},
	}
}

func TestNewSource(t *testing.T) {
	cfg := baseConfig("http://x/infer")

	src, hub, err := NewSource(cfg, ilog.Discard())
	if err != nil || hub == nil || src == nil {
		t.Fatalf("websocket: src=%v hub=%v err=%v", src, hub, err)
	}

	cfg.Surface = config.SurfaceConfig{Kind: config.SurfaceFile, Path: "/tmp/frame.png", CaptureTimeout: time.Second}
	src, hub, err = NewSource(cfg, ilog.Discard())
	if err != nil || hub != nil {
		t.Fatalf("file: hub=%v err=%v", hub, err)
	}
	if _, ok := src.(*frame.FileSource); !ok {
		t.Errorf("file source = %T", src)
	}

	cfg.Surface = config.SurfaceConfig{Kind: config.SurfaceHTTP, URL: "http://canvas/snapshot", CaptureTimeout: time.Second}
	src, _, err = NewSource(cfg, ilog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*frame.HTTPSource); !ok {
		t.Errorf("http source = %T", src)
	}

	cfg.Surface.Kind = "screen"
	if _, _, err := NewSource(cfg, ilog.Discard()); err == nil {
		t.Error("unknown surface kind should fail")
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("scale") != "1" {
			t.Errorf("scale = %q", r.FormValue("scale"))
		}
		w.Write([]byte(`{"Message": "2 objects found"}`))
	}))
	defer server.Close()

	data, err := frame.EncodePNG(image.NewRGBA(image.Rect(0, 0, 3, 3)))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "current.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig(server.URL)
	cfg.Surface = config.SurfaceConfig{Kind: config.SurfaceFile, Path: path, CaptureTimeout: time.Second}

	rec := notify.NewRecorder()
	p, err := New(cfg, ilog.Discard(), rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if p.Surface != nil {
		t.Error("file surface should not create a canvas bridge")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	n, err := p.Trigger.OnUserTrigger(ctx).Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !n.IsSuccess() || n.Message != "2 objects found" {
		t.Errorf("notification = %+v", n)
	}
	if rec.Len() != 1 {
		t.Errorf("extra sink got %d", rec.Len())
	}
	if got := p.Server.Notifications(); len(got) != 1 {
		t.Errorf("server history = %d", len(got))
	}
}

func TestNewRejectsBadPolicy(t *testing.T) {
	cfg := baseConfig("http://x/infer")
	cfg.Trigger.Overlap = "queue"

	if _, err := New(cfg, ilog.Discard()); err == nil {
		t.Error("unknown overlap policy should fail")
	}
}

func TestNewRejectsMissingEndpoint(t *testing.T) {
	if _, err := New(baseConfig(""), ilog.Discard()); err == nil {
		t.Error("missing endpoint should fail")
	}
}

package hub

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"

	ilog "github.com/teslashibe/go-infer-trigger/internal/log"
	"github.com/teslashibe/go-infer-trigger/pkg/protocol"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", ilog.Discard())
	go h.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fws.New(h.Serve))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)

	t.Cleanup(func() {
		cancel()
		app.Shutdown()
	})
	return h, "ws://" + ln.Addr().String() + "/ws"
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNew(t *testing.T) {
	h := New("notifications", nil)
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not run before Run")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	h := New("test", ilog.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	waitFor(t, h.IsRunning)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if h.IsRunning() {
		t.Error("IsRunning should be false after Run returns")
	}

	// Joining a stopped hub must not block.
	if c := NewClient(h, nil); c != nil {
		t.Error("NewClient should return nil on a stopped hub")
	}
}

func TestBroadcastToClients(t *testing.T) {
	h, url := startHub(t)

	a, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer b.Close()

	waitFor(t, func() bool { return h.ClientCount() == 2 })

	msg, _ := protocol.NewNotificationMessage(protocol.NotificationData{
		Kind:    "success",
		Title:   "Inference Successful",
		Message: "ok",
	})
	if err := h.BroadcastProtocol(msg); err != nil {
		t.Fatalf("BroadcastProtocol: %v", err)
	}

	for _, ws := range []*websocket.Conn{a, b} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		parsed, err := protocol.ParseMessage(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		n, _ := parsed.GetNotification()
		if parsed.Type != protocol.TypeNotification || n.Message != "ok" {
			t.Errorf("got %s", data)
		}
	}
}

func TestBroadcastJSONAndBinary(t *testing.T) {
	h, url := startHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if err := h.BroadcastJSON(map[string]int{"in_flight": 1}); err != nil {
		t.Fatal(err)
	}
	h.BroadcastBinary([]byte{1, 2, 3})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]int
	json.Unmarshal(data, &got)
	if mt != websocket.TextMessage || got["in_flight"] != 1 {
		t.Errorf("first message = %d %s", mt, data)
	}

	mt, data, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage || len(data) != 3 {
		t.Errorf("second message = %d %v", mt, data)
	}
}

func TestInboundMessages(t *testing.T) {
	h, url := startHub(t)

	got := make(chan []byte, 1)
	h.OnMessage(func(data []byte) { got <- data })

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	trigger, _ := protocol.NewTriggerMessage(0.5)
	data, _ := trigger.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	select {
	case in := <-got:
		msg, err := protocol.ParseMessage(in)
		if err != nil || msg.Type != protocol.TypeTrigger {
			t.Errorf("inbound = %s", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound handler not called")
	}
}

func TestClientDisconnect(t *testing.T) {
	h, url := startHub(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	ws.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestBroadcastWithoutClients(t *testing.T) {
	h := New("test", ilog.Discard())

	// Must not block even when nobody drains the channel.
	for i := 0; i < 300; i++ {
		h.Broadcast(NewJSONMessage([]byte(`{}`)))
	}
}

func TestFanoutDropsSlowViewer(t *testing.T) {
	h := New("test", ilog.Discard())

	slow := &Client{hub: h, send: make(chan Message)} // never drained
	fast := &Client{hub: h, send: make(chan Message, 1)}
	h.add(slow)
	h.add(fast)

	h.fanout(NewJSONMessage([]byte(`{"n":1}`)))

	if h.ClientCount() != 1 || h.Dropped() != 1 {
		t.Fatalf("clients = %d, dropped = %d", h.ClientCount(), h.Dropped())
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow viewer's queue should be closed")
	}
	if msg := <-fast.send; string(msg.Data) != `{"n":1}` {
		t.Errorf("fast viewer got %s", msg.Data)
	}
}

func TestRunReturnsAfterWriterStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", ilog.Discard())
	go h.Run(ctx)

	writerStopped := make(chan bool, 1)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fws.New(func(conn *fws.Conn) {
		c := NewClient(h, conn)
		if c == nil {
			writerStopped <- false
			return
		}
		c.Run()
		select {
		case <-c.done:
			writerStopped <- true
		default:
			writerStopped <- false
		}
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	defer app.Shutdown()

	for i := 0; i < 20; i++ {
		ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		h.BroadcastJSON(map[string]int{"i": i})
		ws.Close()

		select {
		case ok := <-writerStopped:
			if !ok {
				t.Fatalf("iteration %d: Run returned while the writer was still running", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Run did not return", i)
		}
	}
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

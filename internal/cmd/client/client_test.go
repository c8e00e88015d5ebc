package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	livesensev1 "github.com/rzbill/livesense/api/livesense/v1"
	"github.com/rzbill/livesense/internal/dashboard"
)

// --- HTTP CLI tests ---

type httpStub struct {
	mu       sync.Mutex
	controls dashboard.Controls
	lastBody map[string]any
}

func (s *httpStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/plots", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"plots":[{"id":"0-cos-sine-waves","title":"Cos & Sine Waves","rows":30,"updates":99,"delivered":98,"dropped":1}],"recorder":{"enabled":true,"appended":7}}`))
	})
	mux.HandleFunc("/v1/controls", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.lastBody = body
		if v, ok := body["plotting"].(bool); ok {
			s.controls.Plotting = v
		}
		if v, ok := body["window"].(float64); ok {
			s.controls.Window = int(v)
		}
		_ = json.NewEncoder(w).Encode(s.controls)
	})
	mux.HandleFunc("/v1/plots/p0/history", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "2" {
			http.Error(w, `{"error":"bad limit"}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"plot":"p0","samples":[{"id":"00000000000000010000000000000000","x":1,"values":{"y":0.5},"atMs":1},{"id":"00000000000000020000000000000000","x":2,"values":{"y":0.7},"atMs":2}]}`))
	})
	mux.HandleFunc("/v1/plots/missing/history", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown plot"}`))
	})
	return mux
}

func TestPlotsCommand(t *testing.T) {
	stub := &httpStub{}
	ts := httptest.NewServer(stub.handler())
	defer ts.Close()

	cmd := NewPlotsCommand(func() string { return ts.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "0-cos-sine-waves") || !strings.Contains(out, "DROPPED") || !strings.Contains(out, "recorder: 7 appended") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestControlCommandHTTP(t *testing.T) {
	stub := &httpStub{}
	ts := httptest.NewServer(stub.handler())
	defer ts.Close()

	cmd := NewControlCommand(func() string { return ts.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--plotting", "off", "--window", "42"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, ok := stub.lastBody["delay"]; ok {
		t.Fatalf("unset delay was sent: %v", stub.lastBody)
	}
	var c dashboard.Controls
	if err := json.Unmarshal(buf.Bytes(), &c); err != nil {
		t.Fatalf("decode output %q: %v", buf.String(), err)
	}
	if c.Plotting || c.Window != 42 {
		t.Fatalf("unexpected controls %+v", c)
	}
}

func TestControlCommandValidation(t *testing.T) {
	base := func() string { return "http://127.0.0.1:1" }
	for _, args := range [][]string{nil, {"--plotting", "maybe"}} {
		cmd := NewControlCommand(base)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err == nil {
			t.Fatalf("args %v: expected error", args)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	stub := &httpStub{}
	ts := httptest.NewServer(stub.handler())
	defer ts.Close()

	cmd := NewHistoryCommand(func() string { return ts.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"p0", "--limit", "2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], `"x":2`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}

	cmd = NewHistoryCommand(func() string { return ts.URL })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"missing"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown plot") {
		t.Fatalf("expected unknown plot error, got %v", err)
	}
}

// --- gRPC CLI tests ---

type dashboardStub struct {
	livesensev1.UnimplementedDashboardServer
	mu      sync.Mutex
	filter  string
	samples int
	last    *structpb.Struct
}

func (s *dashboardStub) SetControls(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	s.last = req
	s.mu.Unlock()
	return structpb.NewStruct(map[string]any{"plotting": true, "window": 30.0, "delay": req.GetFields()["delay"].GetNumberValue()})
}

func (s *dashboardStub) Watch(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	s.mu.Lock()
	s.filter = req.GetFields()["filter"].GetStringValue()
	s.mu.Unlock()
	layout, _ := structpb.NewStruct(map[string]any{"type": "layout"})
	if err := stream.Send(layout); err != nil {
		return err
	}
	for i := 0; i < s.samples; i++ {
		ev, _ := structpb.NewStruct(map[string]any{"type": "sample", "sample": map[string]any{"plot": "p0", "x": float64(i)}})
		if err := stream.Send(ev); err != nil {
			return err
		}
	}
	<-stream.Context().Done()
	return nil
}

func startGRPCStub(t *testing.T, svc livesensev1.DashboardServer) (addr string, stop func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs := grpc.NewServer()
	livesensev1.RegisterDashboardServer(gs, svc)
	done := make(chan struct{})
	go func() {
		_ = gs.Serve(l)
		close(done)
	}()
	stop = func() {
		gs.Stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
	return l.Addr().String(), stop
}

func TestTailCommandStopsAtLimit(t *testing.T) {
	stub := &dashboardStub{samples: 5}
	addr, stop := startGRPCStub(t, stub)
	defer stop()
	t.Setenv("LIVESENSE_GRPC", addr)

	cmd := NewTailCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--filter", `plot == "p0"`, "--limit", "3"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected layout + 3 samples, got %d lines: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"layout"`) {
		t.Fatalf("first line should be layout: %s", lines[0])
	}
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if stub.filter != `plot == "p0"` {
		t.Fatalf("filter not forwarded: %q", stub.filter)
	}
}

func TestControlCommandGRPC(t *testing.T) {
	stub := &dashboardStub{}
	addr, stop := startGRPCStub(t, stub)
	defer stop()
	t.Setenv("LIVESENSE_GRPC", addr)

	cmd := NewControlCommand(func() string { return "http://127.0.0.1:1" })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--grpc", "--delay", "0.05"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var c dashboard.Controls
	if err := json.Unmarshal(buf.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Delay != 0.05 || c.Window != 30 {
		t.Fatalf("unexpected controls %+v", c)
	}
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if _, ok := stub.last.GetFields()["plotting"]; ok {
		t.Fatalf("unset plotting was sent: %v", stub.last)
	}
}

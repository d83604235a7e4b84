package server

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kilnhq/kilnd/internal/history"
	"github.com/kilnhq/kilnd/internal/protocol"
)

// Runs one request-response exchange against the server over an in-memory
// connection and returns the decoded response envelope.
func exchange(t *testing.T, s *Server, line []byte) (*protocol.Envelope, []byte) {
	t.Helper()

	client, srv := net.Pipe()
	done := make(chan struct{})
	go func() {
		s.handle(srv)
		close(done)
	}()

	if _, err := client.Write(append(line, '\n')); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp, err := bufio.NewReader(client).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	client.Close()
	<-done

	env, payload, err := protocol.Decode(resp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env, payload
}

func encodeRequest(t *testing.T, cmd protocol.Command, payload any) []byte {
	t.Helper()
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	return data
}

func TestStatusExchange(t *testing.T) {
	s := &Server{startedAt: time.Now(), bakes: 3}

	env, payload := exchange(t, s, encodeRequest(t, protocol.CmdStatus, nil))
	if env.Command != protocol.CmdOK {
		t.Fatalf("command = %q, want ok", env.Command)
	}

	result, err := protocol.DecodePayload[protocol.StatusResult](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !result.Running {
		t.Fatal("running = false, want true")
	}
	if result.Bakes != 3 {
		t.Fatalf("bakes = %d, want 3", result.Bakes)
	}
	if result.Pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", result.Pid, os.Getpid())
	}
}

func TestUnknownCommand(t *testing.T) {
	s := &Server{}

	env, payload := exchange(t, s, encodeRequest(t, protocol.Command("flatten"), nil))
	if env.Command != protocol.CmdError {
		t.Fatalf("command = %q, want error", env.Command)
	}

	result, err := protocol.DecodePayload[protocol.ErrorResult](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.Contains(result.Message, "unknown command") {
		t.Fatalf("message = %q, want unknown command", result.Message)
	}
}

func TestMalformedEnvelope(t *testing.T) {
	s := &Server{}

	env, _ := exchange(t, s, []byte(`{not json`))
	if env.Command != protocol.CmdError {
		t.Fatalf("command = %q, want error", env.Command)
	}
}

func TestEnvelopeWithoutCommand(t *testing.T) {
	s := &Server{}

	env, payload := exchange(t, s, []byte(`{"payload":{}}`))
	if env.Command != protocol.CmdError {
		t.Fatalf("command = %q, want error", env.Command)
	}

	result, err := protocol.DecodePayload[protocol.ErrorResult](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.Contains(result.Message, "missing command") {
		t.Fatalf("message = %q, want missing command", result.Message)
	}
}

func TestBakeWithoutRecipe(t *testing.T) {
	s := &Server{}

	env, payload := exchange(t, s, encodeRequest(t, protocol.CmdBake, &protocol.BakeRequest{Output: "dist"}))
	if env.Command != protocol.CmdError {
		t.Fatalf("command = %q, want error", env.Command)
	}

	result, err := protocol.DecodePayload[protocol.ErrorResult](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !strings.Contains(result.Message, "recipe") {
		t.Fatalf("message = %q, want recipe complaint", result.Message)
	}
}

func TestHistoryExchange(t *testing.T) {
	ledger, err := history.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer ledger.Close()

	for _, name := range []string{"first", "second"} {
		if _, err := ledger.Append(history.Record{
			Name:      name,
			Output:    "dist",
			Platforms: "linux/amd64",
			Duration:  2 * time.Second,
			BakedAt:   time.Now(),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	s := &Server{ledger: ledger}

	env, payload := exchange(t, s, encodeRequest(t, protocol.CmdHistory, &protocol.HistoryRequest{Limit: 10}))
	if env.Command != protocol.CmdOK {
		t.Fatalf("command = %q, want ok", env.Command)
	}

	result, err := protocol.DecodePayload[protocol.HistoryResult](payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if result.Records[0].Name != "second" {
		t.Fatalf("first record = %q, want newest first", result.Records[0].Name)
	}
	if result.Records[0].Duration != "2s" {
		t.Fatalf("duration = %q, want 2s", result.Records[0].Duration)
	}
}

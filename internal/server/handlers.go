package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kilnhq/kilnd/internal"
	"github.com/kilnhq/kilnd/internal/build"
	"github.com/kilnhq/kilnd/internal/history"
	"github.com/kilnhq/kilnd/internal/protocol"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Container name used for run commands that do not specify one.
const defaultRunName = "kilnd-run"

// Handles a bake command.
//
// Receives a recipe and bakes it against the container runtime. The outcome
// is appended to the ledger whether the bake succeeded or not.
func (s *Server) handleBake(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BakeRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}
	if req.Recipe == nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: "bake request carries no recipe"})
		return
	}

	started := time.Now()
	result, err := build.Run(ctx, s.runtime, build.Options{
		Recipe:    req.Recipe,
		Output:    req.Output,
		Root:      req.Root,
		Platforms: req.Platforms,
	})

	s.recordBake(req, started, err)

	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.bakes++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.BakeResult{Output: result.Output})
}

// Appends a bake outcome to the ledger.
func (s *Server) recordBake(req *protocol.BakeRequest, started time.Time, bakeErr error) {
	rec := history.Record{
		Name:      req.Recipe.Name,
		Output:    req.Output,
		Platforms: strings.Join(req.Platforms, ","),
		Duration:  time.Since(started),
		BakedAt:   started,
	}
	if bakeErr != nil {
		rec.Error = bakeErr.Error()
	}

	if _, err := s.ledger.Append(rec); err != nil {
		slog.Warn("failed to record bake", "error", err)
	}
}

// Handles a run command.
//
// Runs a baked image's entry point in the foreground and returns its exit
// code with the captured output. An unresolvable entry point is not an
// error at this level: the result carries the command-not-found exit code
// so the client can propagate it.
func (s *Server) handleRun(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RunRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	tag := req.Tag
	if tag == "" {
		if req.Archive == "" {
			s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: "run request needs an archive or a tag"})
			return
		}
		tag = runtime.ArchiveTag(req.Archive)
		if err := s.runtime.ImportImage(ctx, req.Archive, tag); err != nil {
			s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
			return
		}
	}

	name := req.Name
	if name == "" {
		name = defaultRunName
	}

	var stdout, stderr bytes.Buffer
	code, err := s.runtime.Run(ctx, tag, name, nil, &stdout, &stderr)
	if err != nil {
		if errors.Is(err, runtime.ErrEntrypoint) {
			s.respond(conn, protocol.CmdOK, &protocol.RunResult{
				ExitCode: code,
				Stdout:   stdout.String(),
				Stderr:   err.Error(),
			})
			return
		}
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.RunResult{
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	})
}

// Handles an image import command.
func (s *Server) handleImageImport(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.ImageImportRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	tag := req.Tag
	if tag == "" {
		tag = runtime.ArchiveTag(req.Archive)
	}

	if err := s.runtime.ImportImage(ctx, req.Archive, tag); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, nil)
}

// Handles an image destroy command.
func (s *Server) handleImageDestroy(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.ImageDestroyRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if err := s.runtime.DestroyImage(ctx, req.Tag); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, nil)
}

// Handles a container status command.
func (s *Server) handleContainerStatus(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.ContainerRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	state, err := s.runtime.Container(req.ID).Status(ctx)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.ContainerStatusResult{State: state})
}

// Handles a container stop command.
func (s *Server) handleContainerStop(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.ContainerRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if err := s.runtime.Container(req.ID).Stop(ctx); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.respond(conn, protocol.CmdOK, nil)
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	bakes := s.bakes
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Bakes:   bakes,
	})
}

// Handles a history command.
func (s *Server) handleHistory(conn net.Conn, payload json.RawMessage) {
	limit := 0
	if len(payload) > 0 {
		req, err := protocol.DecodePayload[protocol.HistoryRequest](payload)
		if err != nil {
			s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
			return
		}
		limit = req.Limit
	}

	records, err := s.ledger.Recent(limit)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	result := &protocol.HistoryResult{Records: make([]protocol.BakeRecord, 0, len(records))}
	for _, rec := range records {
		result.Records = append(result.Records, protocol.BakeRecord{
			ID:        rec.ID,
			Name:      rec.Name,
			Output:    rec.Output,
			Platforms: rec.Platforms,
			Duration:  rec.Duration.Truncate(time.Millisecond).String(),
			Error:     rec.Error,
			BakedAt:   rec.BakedAt,
		})
	}

	s.respond(conn, protocol.CmdOK, result)
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}

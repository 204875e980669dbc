package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/masonbuild/mason/internal"
	"github.com/masonbuild/mason/internal/manifest"
	"github.com/masonbuild/mason/internal/pipeline"
	"github.com/masonbuild/mason/internal/protocol"
)

// Handles a build command.
//
// Loads the requested manifest with the caller's parameter overrides and
// executes the pipeline against the container runtime. The build is
// cancelled if the client disconnects before it completes.
func (s *Server) handleBuild(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	p, err := manifest.Load(req.Manifest, req.Overrides)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{
			Message: err.Error(),
			Reason:  pipeline.Reason(err),
		})
		return
	}

	result, err := pipeline.Run(ctx, pipeline.NewEngine(s.runtime), pipeline.Options{
		Pipeline: p,
		Name:     req.Name,
		Source:   req.Source,
		Output:   req.Output,
	})
	if err != nil {
		s.respond(conn, protocol.CmdError, errorResult(err))
		return
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.BuildResult{Output: result.Output})
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	builds := s.builds
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Builds:  builds,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}

// Converts a pipeline error into a wire error, carrying the failing stage
// and reason code when available.
func errorResult(err error) *protocol.ErrorResult {
	result := &protocol.ErrorResult{Message: err.Error()}

	var failure *pipeline.Failure
	if errors.As(err, &failure) {
		result.Stage = failure.Stage
		result.Reason = failure.Reason
	}

	return result
}

package cli

import (
	"context"
	"log/slog"

	"github.com/masonbuild/mason/internal/server"
)

// Represents the 'mason start' command.
type StartCmd struct {
	Socket    string `short:"s" help:"Override the default Unix socket path." placeholder:"PATH"`
	Address   string `help:"Containerd socket address." default:"/run/containerd/containerd.sock"`
	Namespace string `help:"Containerd namespace." default:"mason"`
}

// Executes the start command.
//
// Starts the daemon on a Unix domain socket and blocks until the context
// is cancelled (e.g. via SIGINT or SIGTERM).
func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath:          c.Socket,
		ContainerdAddress:   c.Address,
		ContainerdNamespace: c.Namespace,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("mason daemon is running")

	// The daemon stops on SIGINT/SIGTERM or a shutdown command on the
	// socket, whichever comes first.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		return srv.Stop()
	case <-srv.Done():
		return nil
	}
}

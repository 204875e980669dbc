package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	toolName = "mason"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/mason or /run/user/<uid>/mason
//	macOS:   ~/Library/Caches/mason/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, toolName)
	}
	return filepath.Join(xdg.CacheHome, toolName, "run")
}

// Default path to the Unix domain socket for client-to-daemon communication.
//
//	Linux:   $XDG_RUNTIME_DIR/mason/mason.sock
//	macOS:   ~/Library/Caches/mason/run/mason.sock
func Socket() string {
	return filepath.Join(Runtime(), toolName+".sock")
}

// Default path to the PID file.
//
//	Linux:   $XDG_RUNTIME_DIR/mason/mason.pid
//	macOS:   ~/Library/Caches/mason/run/mason.pid
func PIDFile() string {
	return filepath.Join(Runtime(), toolName+".pid")
}

package internal

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
)

// Name used for binaries, sockets, directories, and log grouping.
const Name = "mason"

// String reported when no release metadata was linked into the binary.
const defaultLocalBuild = "(local)"

var (
	version   = "" // Release version (e.g., "1.2.3"), set via ldflags.
	gitCommit = "" // Git commit hash, set via ldflags.

	rawQuiet   = "false" // Default for quiet mode, set via ldflags.
	rawDebug   = "false" // Default for debug mode, set via ldflags.
	rawVerbose = "false" // Default for verbose logging, set via ldflags.
)

var (
	quietMode   atomic.Bool
	debugMode   atomic.Bool
	verboseMode atomic.Bool
)

// Seeds the runtime mode flags from the linker defaults. CLI flags may
// override them later via the setters.
func init() {
	if v, err := strconv.ParseBool(rawQuiet); err == nil {
		quietMode.Store(v)
	}
	if v, err := strconv.ParseBool(rawDebug); err == nil {
		debugMode.Store(v)
	}
	if v, err := strconv.ParseBool(rawVerbose); err == nil {
		verboseMode.Store(v)
	}
}

// Enables or disables quiet mode.
func SetQuiet(enabled bool) { quietMode.Store(enabled) }

// Returns true if quiet mode is enabled.
func IsQuiet() bool { return quietMode.Load() }

// Enables or disables debug mode.
func SetDebug(enabled bool) { debugMode.Store(enabled) }

// Returns true if debug mode is enabled.
func IsDebug() bool { return debugMode.Load() }

// Enables or disables verbose logging.
func SetVerbose(enabled bool) { verboseMode.Store(enabled) }

// Returns true if verbose logging is enabled.
func IsVerbose() bool { return verboseMode.Load() }

// Returns the release version with any "v" prefix stripped, or an empty
// string for local builds.
func Version() string {
	v := strings.TrimSpace(version)
	v = strings.TrimPrefix(strings.ToLower(v), "v")
	return v
}

// Returns the git commit hash, or an empty string for local builds.
func GitCommit() string {
	return strings.TrimSpace(gitCommit)
}

// Returns true if the binary was built without release metadata.
//
// Release builds set both the version and the commit hash via linker flags.
func IsLocal() bool {
	return Version() == "" || GitCommit() == ""
}

// Returns a detailed version string.
//
// Local builds report "(local)". Release builds report
// "<version> <git-commit> [<arch>]".
func VersionString() string {
	if IsLocal() {
		return defaultLocalBuild
	}
	return fmt.Sprintf("%s %s [%s]", Version(), GitCommit(), runtime.GOARCH)
}

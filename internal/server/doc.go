// Package server exposes the pipeline over a Unix domain socket.
//
// The daemon accepts newline-delimited JSON envelopes (see the protocol
// package) carrying build, status, and shutdown commands. Each connection
// performs one exchange: the client sends a request, the server dispatches
// it and writes back a single CmdOK or CmdError response.
//
// A build request names a pipeline manifest, parameter overrides, a source
// tree, and an output directory; the server loads the manifest and executes
// it against the containerd runtime. If the client disconnects while the
// build is in flight, the build's context is cancelled and its stage
// environments are torn down.
//
// The socket lives in the XDG runtime directory and is restricted to the
// owner and the mason group.
package server

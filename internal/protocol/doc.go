// Package protocol defines the wire format for the daemon socket.
//
// Messages are newline-delimited JSON envelopes carrying a command name and
// an optional payload. A client sends one request per connection and reads
// back a single CmdOK or CmdError envelope.
package protocol

// Package channel provides the byte-stream transport between the bridge and
// one modeller peer.
//
// The bridge creates a [Listener] under a session-unique name, hands the name
// to the peer, and waits for exactly one connection. On Windows the endpoint
// is a named pipe (\\.\pipe\<name>); elsewhere it is a Unix domain socket
// (<dir>/<name>.sock). The resulting [Conn] offers exact-length reads and
// flushed writes and knows nothing about framing.
//
// Read failures are reported as [ErrEndOfStream] when the peer closed its
// end before the requested bytes arrived, and as [*IOError] otherwise, so
// callers can tell an orderly shutdown apart from a broken pipe.
package channel

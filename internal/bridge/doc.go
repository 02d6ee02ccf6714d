// Package bridge drives an EMME modeller peer over a bridge channel.
//
// A Session owns one channel connection and, in launch mode, the peer
// process at its other end. Construction creates the channel, starts the
// peer (or waits for an externally started one), and blocks until the peer
// sends Start. After that the session runs one operation at a time:
//
//	s, err := bridge.New(ctx, bridge.WithPeer(spec))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	res, err := s.Invoke("tmg2.Assignment.assign_traffic", payload, protocol.LogbookStandard, onProgress)
//
// Invoke blocks until the peer sends a terminal signal. Concurrent callers
// are serialized. Print and progress signals are delivered to the output
// sink and the progress callback, in order, before Invoke returns.
//
// Tool failures (parameter, runtime, tool-not-found, incompatible) return a
// *errors.ToolError and leave the session usable. Anything that breaks the
// conversation (I/O failure, an unexpected Termination, an unknown signal)
// returns a *errors.ConnectivityError and disposes the session; every later
// call fails with errors.ErrSessionDisposed without touching the channel.
//
// Close is idempotent and never blocks on the peer. It sends Termination
// if the channel is writable, closes the channel, and stops the peer
// process in the background. Done is closed once the peer has been reaped.
package bridge

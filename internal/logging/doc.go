// Package logging provides structured logging for emmebridge sessions.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Every entry written while a bridge session is alive
// can carry the session ID, the channel name and the modeller tool
// namespace being invoked, which makes a single log file usable for
// several concurrent sessions.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (session ID, channel, operation)
//   - Size-based rotation through lumberjack
//   - Capture of child process output line by line
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer; closing any of
// them closes the shared file.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/emmebridge", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithSession(id).WithOperation("tmg.network.export").Info("invoke started")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"invoke started","session_id":"...","operation":"tmg.network.export"}
//
// # Log Rotation
//
// NewLogger rotates bridge.log at 10MB and keeps three backups. Use
// NewRotatingLogger to change those limits:
//
//	logger, err := logging.NewRotatingLogger(dir, "DEBUG", logging.RotationConfig{
//	    MaxSizeMB:  50,
//	    MaxBackups: 10,
//	    Compress:   true,
//	})
//
// # Peer Output
//
// The modeller process writes diagnostics to stdout and stderr. Wire them
// to the log with LineWriter; each line becomes a DEBUG entry:
//
//	cmd.Stdout = logger.LineWriter("stdout")
//	cmd.Stderr = logger.LineWriter("stderr")
package logging

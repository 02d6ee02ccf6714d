//go:build !windows

package channel

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

// Address returns the Unix socket path for name inside dir.
func Address(name, dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, name+".sock")
}

func listen(addr string) (net.Listener, error) {
	// A stale socket from a crashed session would make bind fail.
	if err := os.Remove(addr); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return net.Listen("unix", addr)
}

func dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", addr)
}

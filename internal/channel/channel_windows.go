//go:build windows

package channel

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

const pipeBufferSize = 64 * 1024

// Address returns the named pipe path for name. dir is unused on Windows.
func Address(name, _ string) string {
	return `\\.\pipe\` + name
}

func listen(addr string) (net.Listener, error) {
	return winio.ListenPipe(addr, &winio.PipeConfig{
		InputBufferSize:  pipeBufferSize,
		OutputBufferSize: pipeBufferSize,
	})
}

func dial(ctx context.Context, addr string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, addr)
}

package channel

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
)

// socketDir returns a short directory so socket paths stay under the
// platform's sun_path limit.
func socketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ebch")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// connectedPair returns the bridge and peer ends of a fresh channel.
func connectedPair(t *testing.T) (host, peer *Conn) {
	t.Helper()
	dir := socketDir(t)
	name := NewName()

	l, err := Listen(name, dir)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	var dialErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		peer, dialErr = Dial(context.Background(), name, dir)
	}()

	host, err = l.WaitForPeer(context.Background(), 5*time.Second)
	wg.Wait()
	if err != nil {
		t.Fatalf("WaitForPeer: %v", err)
	}
	if dialErr != nil {
		t.Fatalf("Dial: %v", dialErr)
	}
	t.Cleanup(func() {
		_ = host.Close()
		_ = peer.Close()
	})
	return host, peer
}

func TestNewName(t *testing.T) {
	a, b := NewName(), NewName()
	if a == b {
		t.Errorf("NewName() returned %q twice", a)
	}
	if !strings.HasPrefix(a, NamePrefix) {
		t.Errorf("NewName() = %q, want prefix %q", a, NamePrefix)
	}
}

func TestListen_EmptyName(t *testing.T) {
	_, err := Listen("", socketDir(t))
	if !apperrors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("Listen(\"\") error = %v, want ErrInvalidInput", err)
	}
}

func TestRoundTrip(t *testing.T) {
	host, peer := connectedPair(t)

	if host.Name() != peer.Name() {
		t.Errorf("names differ: %q vs %q", host.Name(), peer.Name())
	}

	if err := host.WriteAll([]byte("request")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	got, err := peer.ReadExact(7)
	if err != nil {
		t.Fatalf("ReadExact: %v", err)
	}
	if string(got) != "request" {
		t.Errorf("peer read %q", got)
	}

	if err := peer.WriteAll([]byte("resp")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	first, err := host.ReadExact(2)
	if err != nil {
		t.Fatalf("ReadExact: %v", err)
	}
	second, err := host.ReadExact(2)
	if err != nil {
		t.Fatalf("ReadExact: %v", err)
	}
	if string(first)+string(second) != "resp" {
		t.Errorf("host read %q + %q", first, second)
	}
}

func TestReadExact_EndOfStream(t *testing.T) {
	t.Run("clean close", func(t *testing.T) {
		host, peer := connectedPair(t)
		_ = peer.Close()

		_, err := host.ReadExact(4)
		if !errors.Is(err, ErrEndOfStream) {
			t.Fatalf("ReadExact error = %v, want ErrEndOfStream", err)
		}
	})

	t.Run("partial frame", func(t *testing.T) {
		host, peer := connectedPair(t)
		if err := peer.WriteAll([]byte{1, 2}); err != nil {
			t.Fatalf("WriteAll: %v", err)
		}
		_ = peer.Close()

		_, err := host.ReadExact(4)
		if !errors.Is(err, ErrEndOfStream) {
			t.Fatalf("ReadExact error = %v, want ErrEndOfStream", err)
		}
		if !strings.Contains(err.Error(), "2 of 4") {
			t.Errorf("error %q should mention the short count", err)
		}
	})
}

func TestClose_UnblocksRead(t *testing.T) {
	host, _ := connectedPair(t)

	done := make(chan error, 1)
	go func() {
		_, err := host.ReadExact(4)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := host.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		var ioErr *IOError
		if !errors.As(err, &ioErr) {
			t.Fatalf("ReadExact after Close error = %v, want *IOError", err)
		}
		if ioErr.Op != "read" {
			t.Errorf("IOError.Op = %q, want read", ioErr.Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadExact did not return after Close")
	}
}

func TestConnClose_Idempotent(t *testing.T) {
	host, _ := connectedPair(t)
	if err := host.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := host.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	var ioErr *IOError
	if err := host.WriteAll([]byte("x")); !errors.As(err, &ioErr) {
		t.Errorf("WriteAll after Close error = %v, want *IOError", err)
	}
	if host.TryWriteAll([]byte("x"), 50*time.Millisecond) {
		t.Error("TryWriteAll after Close reported success")
	}
}

func TestTryWriteAll(t *testing.T) {
	host, peer := connectedPair(t)

	if !host.TryWriteAll([]byte{1, 0, 0, 0}, 250*time.Millisecond) {
		t.Fatal("TryWriteAll on an idle connection failed")
	}
	got, err := peer.ReadExact(4)
	if err != nil {
		t.Fatalf("ReadExact: %v", err)
	}
	if got[0] != 1 {
		t.Errorf("peer read %v", got)
	}

	host.wmu.Lock()
	sent := host.TryWriteAll([]byte{1}, 250*time.Millisecond)
	host.wmu.Unlock()
	if sent {
		t.Error("TryWriteAll should give up while another write holds the lock")
	}
}

func TestWaitForPeer_Timeout(t *testing.T) {
	dir := socketDir(t)
	name := NewName()

	l, err := Listen(name, dir)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	start := time.Now()
	_, err = l.WaitForPeer(context.Background(), 50*time.Millisecond)
	if !apperrors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("WaitForPeer error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("WaitForPeer took %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if c, err := Dial(ctx, name, dir); err == nil {
		_ = c.Close()
		t.Error("Dial succeeded after the wait was abandoned")
	}
}

func TestWaitForPeer_ContextCanceled(t *testing.T) {
	l, err := Listen(NewName(), socketDir(t))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = l.WaitForPeer(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitForPeer error = %v, want context.Canceled", err)
	}
}

func TestWaitForPeer_ListenerClosed(t *testing.T) {
	l, err := Listen(NewName(), socketDir(t))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = l.Close()
	}()

	_, err = l.WaitForPeer(context.Background(), 5*time.Second)
	if !errors.Is(err, ErrListenerClosed) {
		t.Fatalf("WaitForPeer error = %v, want ErrListenerClosed", err)
	}

	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := l.WaitForPeer(context.Background(), time.Second); !errors.Is(err, ErrListenerClosed) {
		t.Errorf("WaitForPeer after Close error = %v, want ErrListenerClosed", err)
	}
}

func TestListener_Accessors(t *testing.T) {
	dir := socketDir(t)
	name := NewName()
	l, err := Listen(name, dir)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	if l.Name() != name {
		t.Errorf("Name() = %q, want %q", l.Name(), name)
	}
	if l.Addr() != Address(name, dir) {
		t.Errorf("Addr() = %q, want %q", l.Addr(), Address(name, dir))
	}
}

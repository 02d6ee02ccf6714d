package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_CallsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte("operations: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, nil, func() { changes <- struct{}{} })
	}()

	// Give the watcher time to register before writing. Rewrite until the
	// first change is seen in case the first write raced the registration.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for seen := false; !seen; {
		select {
		case <-changes:
			seen = true
		case <-tick.C:
			if err := os.WriteFile(path, []byte("operations:\n  - operation: a\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no change reported")
		}
	}

	// Other files in the directory are ignored.
	for len(changes) > 0 {
		<-changes
	}
	tick.Stop()
	time.Sleep(100 * time.Millisecond)
	for len(changes) > 0 {
		<-changes
	}
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changes:
		t.Error("change reported for another file")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "run.yaml"), 0, nil, func() {})
	if err == nil {
		t.Error("Watch() on a missing directory succeeded")
	}
}

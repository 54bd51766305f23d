package scratch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestWithFile_removesOnSuccess(t *testing.T) {
	d := New(t.TempDir())
	var seen string
	err := d.WithFile([]byte("ATOM"), ".pdb", func(path string) error {
		seen = path
		got, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if string(got) != "ATOM" {
			t.Errorf("content: got %q", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithFile: %v", err)
	}
	if !strings.HasSuffix(seen, ".pdb") || !strings.HasPrefix(filepath.Base(seen), filePrefix) {
		t.Errorf("unexpected name %q", seen)
	}
	if _, err := os.Stat(seen); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch file still present: %v", err)
	}
}

func TestWithFile_removesOnError(t *testing.T) {
	d := New(t.TempDir())
	want := errors.New("parse failed")
	var seen string
	err := d.WithFile([]byte("x"), "", func(path string) error {
		seen = path
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if _, err := os.Stat(seen); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch file still present after error")
	}
}

func TestWithFile_removesOnPanic(t *testing.T) {
	d := New(t.TempDir())
	func() {
		defer func() { _ = recover() }()
		_ = d.WithFile([]byte("x"), "", func(string) error { panic("boom") })
	}()
	left, err := leftovers(d)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("leftovers after panic: %v", left)
	}
}

func TestWithFile_alreadyRemovedDoesNotMaskResult(t *testing.T) {
	d := New(t.TempDir())
	err := d.WithFile([]byte("x"), "", func(path string) error {
		return os.Remove(path)
	})
	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWithFile_concurrentNamesAreUnique(t *testing.T) {
	d := New(t.TempDir())
	var (
		mu    sync.Mutex
		names = map[string]bool{}
		wg    sync.WaitGroup
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.WithFile([]byte("x"), ".pdb", func(path string) error {
				mu.Lock()
				defer mu.Unlock()
				if names[path] {
					t.Errorf("duplicate scratch path %s", path)
				}
				names[path] = true
				return nil
			})
			if err != nil {
				t.Errorf("WithFile: %v", err)
			}
		}()
	}
	wg.Wait()
	if left, _ := leftovers(d); len(left) != 0 {
		t.Errorf("leftovers: %v", left)
	}
}

func TestNew_defaultsToTempDir(t *testing.T) {
	if got := New("").Root(); got != os.TempDir() {
		t.Errorf("Root: got %q", got)
	}
}

// leftovers lists scratch files present under d's root.
func leftovers(d *Dir) ([]string, error) {
	return filepath.Glob(filepath.Join(d.root, filePrefix+"*"))
}

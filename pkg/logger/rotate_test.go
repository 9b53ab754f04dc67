package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	writer, err := newRotatingWriter(path, 1, 2, 30)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()
	writer.maxSize = 32

	line := []byte(strings.Repeat("a", 20) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := writer.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("current log missing: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected rotated backup: %v", err)
	}
}

func TestErrAttr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Key != "error" || attr.Value.String() != "boom" {
		t.Fatalf("unexpected attr: %v", attr)
	}
	if Err(nil).Value.String() != "" {
		t.Fatalf("nil error must map to empty string")
	}
}

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTailFile(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour\n")

	lines, err := TailFile(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "three" || lines[1] != "four" {
		t.Errorf("TailFile = %v", lines)
	}

	// Asking for more lines than exist returns them all.
	lines, err = TailFile(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 4 || lines[0] != "one" {
		t.Errorf("TailFile = %v", lines)
	}
}

func TestTailFileSpansBlocks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 4000; i++ {
		fmt.Fprintf(&b, "log line number %d\n", i)
	}
	path := writeLog(t, b.String())

	lines, err := TailFile(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 || lines[2] != "log line number 3999" {
		t.Errorf("TailFile = %v", lines)
	}
}

func TestTailFileEdges(t *testing.T) {
	path := writeLog(t, "")
	lines, err := TailFile(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("empty file should yield no lines, got %v", lines)
	}

	// Final line without trailing newline still counts.
	path = writeLog(t, "one\ntwo")
	lines, err = TailFile(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "two" {
		t.Errorf("TailFile = %v", lines)
	}

	if _, err := TailFile(filepath.Join(t.TempDir(), "missing.log"), 5); err == nil {
		t.Error("missing file should error")
	}

	if lines, _ := TailFile(path, 0); lines != nil {
		t.Errorf("n=0 should yield nil, got %v", lines)
	}
}

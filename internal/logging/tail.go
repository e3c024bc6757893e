package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// tailBlockSize is how much of the file end is read per step when
// scanning backwards for line starts.
const tailBlockSize = 8192

// TailFile returns the last n lines of a file without reading the whole
// file. Lines are returned oldest first. A missing file is an error;
// an empty file yields no lines.
func TailFile(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	var (
		buf    []byte
		offset = info.Size()
	)
	for offset > 0 {
		step := int64(tailBlockSize)
		if step > offset {
			step = offset
		}
		offset -= step

		block := make([]byte, step)
		if _, err := f.ReadAt(block, offset); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read log file: %w", err)
		}
		buf = append(block, buf...)

		if bytes.Count(buf, []byte{'\n'}) > n {
			break
		}
	}

	text := strings.TrimRight(string(buf), "\n")
	if text == "" {
		return nil, nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

package parsers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// MaxLineSize bounds a single JSONL line. Longer lines are skipped as
// malformed; decoding continues with the next line.
const MaxLineSize = 8 * 1024 * 1024

const readBufferSize = 64 * 1024

// LineStats counts what DecodeLines saw. Oversize lines are also counted as
// Malformed. Err is the read error that ended decoding early, if any.
type LineStats struct {
	Lines     int
	Blank     int
	Malformed int
	Oversize  int
	Err       error
}

// DecodeLines decodes every non-blank line of r as an independent JSON value.
// Lines that fail to decode or exceed MaxLineSize are counted and skipped.
func DecodeLines(r io.Reader) ([]any, LineStats) {
	return decodeLines(r, MaxLineSize)
}

func decodeLines(r io.Reader, maxLine int) ([]any, LineStats) {
	var (
		out      []any
		stats    LineStats
		line     []byte
		oversize bool
	)
	reader := bufio.NewReaderSize(r, readBufferSize)

	for {
		chunk, err := reader.ReadSlice('\n')
		if !oversize {
			if len(line)+len(chunk) > maxLine {
				oversize = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if len(chunk) > 0 || len(line) > 0 || oversize {
			stats.Lines++
			switch trimmed := bytes.TrimSpace(line); {
			case oversize:
				stats.Oversize++
				stats.Malformed++
			case len(trimmed) == 0:
				stats.Blank++
			default:
				var value any
				if jsonErr := json.Unmarshal(trimmed, &value); jsonErr != nil {
					stats.Malformed++
				} else {
					out = append(out, value)
				}
			}
		}
		line = line[:0]
		oversize = false

		if err != nil {
			if !errors.Is(err, io.EOF) {
				stats.Err = err
			}
			break
		}
	}
	return out, stats
}

// ReadFile decodes a whole JSONL file. The error is non-nil only when the file
// cannot be opened; decode problems are reported through LineStats.
func ReadFile(path string) ([]any, LineStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LineStats{}, err
	}
	defer f.Close()

	records, stats := DecodeLines(f)
	return records, stats, nil
}

// ReadRange returns the bytes in [from, to) of path.
func ReadRange(path string, from, to int64) ([]byte, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("invalid byte range [%d, %d)", from, to)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.NewSectionReader(f, from, to-from))
	if err != nil {
		return nil, fmt.Errorf("reading %s [%d, %d): %w", path, from, to, err)
	}
	return data, nil
}

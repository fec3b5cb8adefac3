// Package patchfile reads and writes the line-oriented hunk list format
// shared by diff-frames and patch-frames: one hunk per line, four unsigned
// decimal integers separated by whitespace.
package patchfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/brackenfield/sampldiff/pkg/hunk"
)

// Write emits one line per hunk: "<a_start> <a_end> <b_start> <b_end>\n".
func Write(w io.Writer, hunks []hunk.Hunk) error {
	bw := bufio.NewWriter(w)
	for _, h := range hunks {
		if _, err := fmt.Fprintf(bw, "%d %d %d %d\n", h.A.Start, h.A.End, h.B.Start, h.B.End); err != nil {
			return fmt.Errorf("patchfile: write: %w", err)
		}
	}
	return bw.Flush()
}

// Read parses a hunk list from r, one hunk per line. Blank lines are
// skipped. A line that fails to parse into exactly four unsigned integers
// terminates ingestion: Read returns the hunks parsed so far alongside a
// non-nil error, per the patch-file format's "prior hunks stand" policy.
func Read(r io.Reader) ([]hunk.Hunk, error) {
	var hunks []hunk.Hunk
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if len(text) == 0 {
			continue
		}
		if fields := strings.Fields(text); len(fields) != 4 {
			return hunks, fmt.Errorf("patchfile: line %d: expected 4 unsigned integers, got %d fields in %q", line, len(fields), text)
		}
		var aStart, aEnd, bStart, bEnd uint64
		n, err := fmt.Sscan(text, &aStart, &aEnd, &bStart, &bEnd)
		if err != nil || n != 4 {
			return hunks, fmt.Errorf("patchfile: line %d: expected 4 unsigned integers, got %q: %w", line, text, err)
		}
		hunks = append(hunks, hunk.Hunk{
			A: hunk.View{Start: aStart, End: aEnd},
			B: hunk.View{Start: bStart, End: bEnd},
		})
	}
	if err := scanner.Err(); err != nil {
		return hunks, fmt.Errorf("patchfile: scanning: %w", err)
	}
	return hunks, nil
}

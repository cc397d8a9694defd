package runner

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

// maxLineBytes caps a single line. Longer lines are split into pieces of
// this size so a child that never writes a newline cannot grow memory.
const maxLineBytes = 64 * 1024

// readLines calls emit for every complete line read from r, then once more
// for a trailing partial line when the stream ends. Line terminators ("\n"
// and a preceding "\r") are stripped. A stream closed under the reader by
// Handle.Close counts as a normal end.
func readLines(r io.Reader, emit func(string)) error {
	br := bufio.NewReaderSize(r, maxLineBytes)
	for {
		chunk, err := br.ReadSlice('\n')
		switch {
		case err == nil:
			emit(strings.TrimSuffix(string(chunk[:len(chunk)-1]), "\r"))
		case errors.Is(err, bufio.ErrBufferFull):
			emit(string(chunk))
		default:
			if len(chunk) > 0 {
				emit(strings.TrimSuffix(string(chunk), "\r"))
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

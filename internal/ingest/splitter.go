package ingest

import (
	"bytes"
	"strings"
)

// SplitLines combines previously buffered partial bytes with a freshly read
// chunk and returns every complete line plus the trailing remainder. A chunk
// that does not end in a newline always leaves a non-empty remainder; a line
// is only ever handed to the parser once it is known complete.
func SplitLines(buffered, chunk []byte) (lines []string, remainder []byte) {
	data := buffered
	if len(chunk) > 0 {
		data = append(append([]byte{}, buffered...), chunk...)
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(data[:idx]), "\r")
		lines = append(lines, line)
		data = data[idx+1:]
	}

	remainder = append([]byte{}, data...)
	return lines, remainder
}

// Consumed returns how many input bytes were consumed by complete lines,
// given the total input length and the remainder SplitLines returned. This
// is what the cursor advances by.
func Consumed(total int64, remainder []byte) int64 {
	return total - int64(len(remainder))
}

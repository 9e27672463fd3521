package capture

import (
	"bufio"
	"io"
	"os"
	"strconv"
)

// Writer appends records to a log. It does not validate records.
type Writer struct {
	// Origin is subtracted from every tick written, usually the tick
	// at which the session started.
	Origin uint32

	w      *bufio.Writer
	closer io.Closer
	buf    []byte
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return NewWriter(f), nil
}

// Append serializes rec as one line.
func (w *Writer) Append(rec *Record) error {
	w.buf = AppendLine(w.buf[:0], rec, w.Origin)
	_, err := w.w.Write(w.buf)
	return err
}

// Flush writes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes and closes the underlying writer if it is a Closer.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// AppendLine appends the log line of rec, including the newline, to dst.
func AppendLine(dst []byte, rec *Record, origin uint32) []byte {
	dst = appendHex(dst, uint64(TickDiff(origin, rec.Tick)), 8)
	dst = append(dst, ", "...)
	dst = appendHex(dst, uint64(rec.Cause), 2)
	dst = append(dst, ", "...)
	var status byte
	if rec.HasStatus {
		status = rec.Status
	}
	dst = appendHex(dst, uint64(status), 2)
	dst = append(dst, ", "...)
	dst = appendHex(dst, uint64(len(rec.Words)), 2)
	for _, w := range rec.Words {
		dst = append(dst, ", "...)
		dst = appendHex(dst, uint64(w), 8)
	}
	return append(dst, '\n')
}

func appendHex(dst []byte, v uint64, width int) []byte {
	var tmp [16]byte
	s := strconv.AppendUint(tmp[:0], v, 16)
	for i := len(s); i < width; i++ {
		dst = append(dst, '0')
	}
	for _, c := range s {
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		dst = append(dst, c)
	}
	return dst
}

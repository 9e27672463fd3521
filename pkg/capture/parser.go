package capture

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError reports a malformed log line.
type ParseError struct {
	Line int
	Msg  string
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Entry is a parsed log line.
type Entry struct {
	Record
	// Line is the 1-based line number in the log.
	Line int
	// DeclaredWords is the word count field as written.
	DeclaredWords int
}

// Mismatch reports whether the declared word count disagrees with
// the words present on the line.
func (e *Entry) Mismatch() bool {
	return e.DeclaredWords != len(e.Words)
}

// ParseLine parses one log line. The line number is only used in errors.
func ParseLine(lineNo int, line string) (*Entry, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 4 {
		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("expect at least 4 fields, got %d", len(fields))}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	e := &Entry{Line: lineNo}
	tick, err := strconv.ParseUint(fields[0], 16, 32)
	if err != nil {
		return nil, &ParseError{Line: lineNo, Msg: "bad tick " + strconv.Quote(fields[0])}
	}
	e.Tick = uint32(tick)
	cause, err := strconv.ParseUint(fields[1], 16, 8)
	if err != nil {
		return nil, &ParseError{Line: lineNo, Msg: "bad cause " + strconv.Quote(fields[1])}
	}
	e.Cause = Cause(cause)
	switch fields[2] {
	case "", "--":
	default:
		status, err := strconv.ParseUint(fields[2], 16, 8)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: "bad status " + strconv.Quote(fields[2])}
		}
		// 00 is written for records without a status read.
		e.Status, e.HasStatus = byte(status), status != 0
	}
	count, err := strconv.ParseUint(fields[3], 16, 16)
	if err != nil {
		return nil, &ParseError{Line: lineNo, Msg: "bad word count " + strconv.Quote(fields[3])}
	}
	e.DeclaredWords = int(count)
	e.DeclaredCount = e.DeclaredWords * WordSize
	if n := len(fields) - 4; n > 0 {
		e.Words = make([]uint32, 0, n)
	}
	for _, f := range fields[4:] {
		w, err := strconv.ParseUint(f, 16, 32)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: "bad sample word " + strconv.Quote(f)}
		}
		e.Words = append(e.Words, uint32(w))
	}
	return e, nil
}

// Reader reads entries from a log.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Reader{sc: sc}
}

// Next returns the next entry, or io.EOF at the end of the log.
// Blank lines are skipped.
func (r *Reader) Next() (*Entry, error) {
	for r.sc.Scan() {
		r.line++
		text := r.sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		return ParseLine(r.line, text)
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ReadAll reads every entry of a log.
func ReadAll(r io.Reader) ([]*Entry, error) {
	var entries []*Entry
	rd := NewReader(r)
	for {
		e, err := rd.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}

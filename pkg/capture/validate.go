package capture

import (
	"fmt"
	"io"
	"sort"
)

// FindingKind classifies integrity findings.
type FindingKind int

// Finding kinds.
const (
	// FindingMismatch is a declared word count disagreeing with the line.
	FindingMismatch FindingKind = iota
	// FindingOverflow is an RX error record.
	FindingOverflow
	// FindingDiscontinuity is a pair of adjacent samples not differing by 1.
	FindingDiscontinuity
)

// String implements fmt.Stringer.
func (k FindingKind) String() string {
	switch k {
	case FindingMismatch:
		return "mismatch"
	case FindingOverflow:
		return "overflow"
	case FindingDiscontinuity:
		return "discontinuity"
	}
	return "unknown"
}

// Finding is a non-fatal integrity signal found while validating.
type Finding struct {
	Kind FindingKind
	Line int
	Tick uint32
	// Missed is the number of samples missing. For overflows it is
	// only meaningful when Known is set.
	Missed int64
	Known  bool
	// Declared and Present are the word counts of a mismatch.
	Declared int
	Present  int
}

// String implements fmt.Stringer.
func (f Finding) String() string {
	switch f.Kind {
	case FindingMismatch:
		return fmt.Sprintf("Sample quantity mismatch detected at %08X (declared %d, present %d)", f.Tick, f.Declared, f.Present)
	case FindingOverflow:
		if !f.Known {
			return fmt.Sprintf("RX error causing unknown missed samples detected at %08X", f.Tick)
		}
		return fmt.Sprintf("RX error causing %d missed samples detected at %08X", f.Missed, f.Tick)
	case FindingDiscontinuity:
		return fmt.Sprintf("Discontinuity of %d samples with unknown cause detected at 0x%08X!", f.Missed, f.Tick)
	}
	return "unknown finding"
}

// Report summarizes a validated log.
type Report struct {
	Records         int
	Samples         int
	Unknown         int
	Mismatches      int
	Overflows       int
	Discontinuities int
	Causes          map[Cause]int
	Findings        []Finding
}

// Clean reports whether no integrity signal was found.
func (r *Report) Clean() bool {
	return r.Mismatches == 0 && r.Overflows == 0 && r.Discontinuities == 0
}

// WriteSummary prints the totals.
func (r *Report) WriteSummary(w io.Writer) error {
	causes := make([]int, 0, len(r.Causes))
	for c := range r.Causes {
		causes = append(causes, int(c))
	}
	sort.Ints(causes)
	_, err := fmt.Fprintf(w, "Records:         %d\nSamples:         %d (+%d unknown)\n", r.Records, r.Samples, r.Unknown)
	for _, c := range causes {
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "  0x%02X %-24s %d\n", c, Cause(c), r.Causes[Cause(c)])
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Packet mismatch: %d\nReceive errors:  %d\nDiscontinuities: %d\n",
		r.Mismatches, r.Overflows, r.Discontinuities)
	return err
}

// sample is one expanded sample; records without payload expand
// to a single unknown sample.
type sample struct {
	value uint32
	known bool
}

// Validator checks record sequences for count and continuity.
// Sample words are assumed to be a rolling sample index.
type Validator struct {
	// OnFinding is called for every finding when it is detected.
	OnFinding func(Finding)
	// OnEvent is called for every record which is not a data record.
	OnEvent func(*Entry)

	report  Report
	prev    sample
	hasPrev bool
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{report: Report{Causes: make(map[Cause]int)}}
}

func (v *Validator) emit(f Finding) {
	v.report.Findings = append(v.report.Findings, f)
	if v.OnFinding != nil {
		v.OnFinding(f)
	}
}

// sampleGap is the number of samples skipped between a and b,
// using the signed 32-bit difference so wrapping counters stay continuous.
func sampleGap(a, b uint32) int64 {
	return int64(int32(b-a)) - 1
}

// Add validates the next entry.
func (v *Validator) Add(e *Entry) {
	if v.report.Causes == nil {
		v.report.Causes = make(map[Cause]int)
	}
	v.report.Records++
	v.report.Causes[e.Cause]++
	if e.Mismatch() {
		v.report.Mismatches++
		v.emit(Finding{
			Kind:     FindingMismatch,
			Line:     e.Line,
			Tick:     e.Tick,
			Declared: e.DeclaredWords,
			Present:  len(e.Words),
		})
	}
	if !e.Cause.IsData() && v.OnEvent != nil {
		v.OnEvent(e)
	}

	samples := []sample{{}}
	if len(e.Words) > 0 {
		samples = make([]sample, len(e.Words))
		for i, w := range e.Words {
			samples[i] = sample{value: w, known: true}
		}
	}

	if e.Cause == CauseRxError {
		v.report.Overflows++
		// an error record without samples of its own leaves the gap unknown.
		f := Finding{Kind: FindingOverflow, Line: e.Line, Tick: e.Tick}
		if f.Known = v.hasPrev && v.prev.known && samples[0].known; f.Known {
			f.Missed = sampleGap(v.prev.value, samples[0].value)
		}
		v.emit(f)
	}

	for _, s := range samples {
		if s.known {
			v.report.Samples++
		} else {
			v.report.Unknown++
		}
		if v.hasPrev && v.prev.known && s.known && s.value-v.prev.value != 1 {
			v.report.Discontinuities++
			v.emit(Finding{
				Kind:   FindingDiscontinuity,
				Line:   e.Line,
				Tick:   e.Tick,
				Missed: sampleGap(v.prev.value, s.value),
				Known:  true,
			})
		}
		v.prev, v.hasPrev = s, true
	}
}

// Finish returns the report.
func (v *Validator) Finish() *Report {
	report := v.report
	return &report
}

// Validate reads and validates a whole log. Parse errors abort validation.
func Validate(r io.Reader, v *Validator) (*Report, error) {
	if v == nil {
		v = NewValidator()
	}
	rd := NewReader(r)
	for {
		e, err := rd.Next()
		if err == io.EOF {
			return v.Finish(), nil
		}
		if err != nil {
			return v.Finish(), err
		}
		v.Add(e)
	}
}

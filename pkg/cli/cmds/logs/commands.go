package logs

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ccdr.go/pkg/capture"
	"github.com/robotalks/ccdr.go/pkg/cli/sh"
)

type findingJSON struct {
	Kind    string `json:"kind"`
	Line    int    `json:"line"`
	Tick    uint32 `json:"tick"`
	Missed  *int64 `json:"missed"`
	Message string `json:"message"`
}

// MustBeLoaded wraps command func requires a loaded log.
func MustBeLoaded(fn func(*ishell.Context, []*capture.Entry, *capture.Report)) func(*ishell.Context) {
	return func(c *ishell.Context) {
		_, entries, report, err := sh.WorkspaceFrom(c).Log()
		if err != nil {
			c.Err(err)
			return
		}
		fn(c, entries, report)
	}
}

var (
	// LoadCmd loads and validates a capture log.
	LoadCmd = ishell.Cmd{
		Name:    "load",
		Aliases: []string{"ld"},
		Help:    "FILE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			w := sh.WorkspaceFrom(c)
			if err := w.Load(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			_, entries, report, _ := w.Log()
			c.Printf("%d records, %d findings\n", len(entries), len(report.Findings))
		},
	}

	// SummaryCmd prints the totals of the loaded log.
	SummaryCmd = ishell.Cmd{
		Name:    "summary",
		Aliases: []string{"sum"},
		Help:    "",
		Func: MustBeLoaded(func(c *ishell.Context, _ []*capture.Entry, report *capture.Report) {
			if sh.PrintJSON(c, report) {
				return
			}
			var buf bytes.Buffer
			if err := report.WriteSummary(&buf); err != nil {
				c.Err(err)
				return
			}
			c.Print(buf.String())
		}),
	}

	// FindingsCmd lists integrity findings.
	FindingsCmd = ishell.Cmd{
		Name:    "findings",
		Aliases: []string{"f"},
		Help:    "[mismatch|overflow|discontinuity]",
		Func: MustBeLoaded(func(c *ishell.Context, _ []*capture.Entry, report *capture.Report) {
			var out []findingJSON
			for _, f := range report.Findings {
				if len(c.Args) > 0 && f.Kind.String() != c.Args[0] {
					continue
				}
				item := findingJSON{Kind: f.Kind.String(), Line: f.Line, Tick: f.Tick, Message: f.String()}
				if f.Known {
					missed := f.Missed
					item.Missed = &missed
				}
				out = append(out, item)
			}
			if sh.PrintJSON(c, out) {
				return
			}
			for _, item := range out {
				c.Printf("%6d: %s\n", item.Line, item.Message)
			}
		}),
	}

	// RecordsCmd prints records of the loaded log.
	RecordsCmd = ishell.Cmd{
		Name:    "records",
		Aliases: []string{"r"},
		Help:    "[FROM-LINE [COUNT]]",
		Func: MustBeLoaded(func(c *ishell.Context, entries []*capture.Entry, _ *capture.Report) {
			from, count := 1, 20
			var err error
			if len(c.Args) > 0 {
				if from, err = strconv.Atoi(c.Args[0]); err != nil {
					c.Err(fmt.Errorf("Invalid FROM-LINE: %v", err))
					return
				}
			}
			if len(c.Args) > 1 {
				if count, err = strconv.Atoi(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("Invalid COUNT: %v", err))
					return
				}
			}
			for _, e := range entries {
				if e.Line < from {
					continue
				}
				if count--; count < 0 {
					break
				}
				c.Printf("%6d: %s\n", e.Line, &e.Record)
			}
		}),
	}

	// EventsCmd lists records which are not data records.
	EventsCmd = ishell.Cmd{
		Name:    "events",
		Aliases: []string{"ev"},
		Help:    "",
		Func: func(c *ishell.Context) {
			events, err := sh.WorkspaceFrom(c).Events()
			if err != nil {
				c.Err(err)
				return
			}
			for _, e := range events {
				c.Printf("%6d: %s\n", e.Line, &e.Record)
			}
		},
	}
)

func init() {
	sh.AddCmds(
		&LoadCmd,
		&SummaryCmd,
		&FindingsCmd,
		&RecordsCmd,
		&EventsCmd,
	)
}

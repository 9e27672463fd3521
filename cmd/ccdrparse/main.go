package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/robotalks/ccdr.go/pkg/capture"
)

var (
	showEvents bool
	strict     bool
)

func init() {
	flag.BoolVar(&showEvents, "events", false, "Print non-data records.")
	flag.BoolVar(&strict, "strict", false, "Exit with status 1 when any finding is reported.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] LOG...\n", os.Args[0])
		flag.PrintDefaults()
	}
}

type result struct {
	out    bytes.Buffer
	report *capture.Report
}

func validate(fn string, res *result) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	v := capture.NewValidator()
	v.OnFinding = func(finding capture.Finding) {
		fmt.Fprintln(&res.out, finding)
	}
	if showEvents {
		v.OnEvent = func(e *capture.Entry) {
			fmt.Fprintf(&res.out, "%d: %s\n", e.Line, &e.Record)
		}
	}
	res.report, err = capture.Validate(f, v)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

func (res *result) writeTo(w io.Writer) error {
	if _, err := io.Copy(w, &res.out); err != nil {
		return err
	}
	return res.report.WriteSummary(w)
}

func main() {
	flag.Parse()
	files := flag.Args()
	if len(files) == 0 {
		files = []string{"data.txt"}
	}

	results := make([]result, len(files))
	var g errgroup.Group
	for n := range files {
		n := n
		g.Go(func() error { return validate(files[n], &results[n]) })
	}
	err := g.Wait()

	clean := true
	for n, fn := range files {
		res := &results[n]
		if res.report == nil {
			continue
		}
		if len(files) > 1 {
			fmt.Printf("==> %s <==\n", fn)
		}
		if werr := res.writeTo(os.Stdout); werr != nil {
			log.Fatalln(werr)
		}
		clean = clean && res.report.Clean()
	}
	if err != nil {
		log.Fatalln(err)
	}
	if strict && !clean {
		os.Exit(1)
	}
}

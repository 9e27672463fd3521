package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/robotalks/ccdr.go/pkg/capture"
	"github.com/robotalks/ccdr.go/pkg/telemetry"
)

var (
	telemetryURL = "mqtt://localhost:1883/ccdr/"
	outputFile   string
)

func init() {
	if val := os.Getenv("CCDR_TELEMETRY_URL"); val != "" {
		telemetryURL = val
	}
	flag.StringVar(&telemetryURL, "telemetry", telemetryURL, "Telemetry URL to receive records from.")
	flag.StringVar(&outputFile, "o", "", "Also write received records to this capture log.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	src, err := telemetry.Open(telemetryURL)
	if err != nil {
		log.Fatalln(err)
	}
	defer src.Close()

	var w *capture.Writer
	if outputFile != "" {
		if w, err = capture.Create(outputFile); err != nil {
			log.Fatalln(err)
		}
		defer w.Close()
	}

	for {
		pkt, err := src.ReadPacket()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalln(err)
		}
		frame, err := telemetry.DecodeFrame(pkt)
		if err != nil {
			log.Printf("bad packet: %v", err)
			continue
		}
		log.Printf("%s/%s: %s", frame.Station, frame.Chip, &frame.Record)
		if w == nil {
			continue
		}
		w.Origin = frame.Origin
		if err = w.Append(&frame.Record); err == nil {
			err = w.Flush()
		}
		if err != nil {
			log.Fatalln(err)
		}
	}
}

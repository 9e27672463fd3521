package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/ccdr.go/pkg/env"
	fx "github.com/robotalks/ccdr.go/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	capt := conf.MustNewCapture()

	ctx := context.Background()
	if conf.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Duration)
		defer cancel()
	}
	err := fx.NewRunnerWith(ctx).
		HandleSignals().
		Go(fx.NamedRun("capture", fx.NewLoop().Add(capt))).
		Wait()
	err = capt.Finish(err)
	stats := capt.Session.Stats()
	glog.Infof("%d records, %d anomalies, %d resyncs, %d watchdog expiries",
		stats.Records, stats.Anomalies, stats.Resyncs, stats.Watchdogs)
	if err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
}

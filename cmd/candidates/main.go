package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/PatchLens/go-reduce/reduce"
	"github.com/PatchLens/go-reduce/reduce/cmd"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	config, err := cmd.ParseScanFlags()
	if err != nil {
		log.Fatalf("%s%v", reduce.ErrorLogPrefix, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if _, err := reduce.RunScan(ctx, config); err != nil {
		log.Fatalf("%s%v", reduce.ErrorLogPrefix, err)
	}
	if config.ReportJsonFile != "" {
		log.Println("Report file wrote: " + config.ReportJsonFile)
	}
	if config.ReportChartsFile != "" {
		log.Println("Report file wrote: " + config.ReportChartsFile)
	}
}

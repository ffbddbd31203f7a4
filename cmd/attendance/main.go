// Package main starts the attendance HTTP API and gRPC health process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	attendancecmd "github.com/louisbranch/rollcall/internal/cmd/attendance"
	entrypoint "github.com/louisbranch/rollcall/internal/platform/cmd"
	"github.com/louisbranch/rollcall/internal/platform/config"
)

func main() {
	cfg, err := attendancecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceAttendance))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := attendancecmd.Run(ctx, cfg); err != nil {
		stop()
		if cfg.HealthCheck {
			config.Exitf("healthcheck: %v", err)
		}
		log.Fatalf("failed to serve: %v", err)
	}
}

// Package attendance parses attendance service flags and launches the
// service.
package attendance

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/rollcall/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/rollcall/internal/platform/grpc"
	"github.com/louisbranch/rollcall/internal/platform/timeouts"
	server "github.com/louisbranch/rollcall/internal/services/attendance/app"
)

// Config holds attendance command configuration.
type Config struct {
	HTTPAddr    string `env:"ROLLCALL_HTTP_ADDR" envDefault:":8080"`
	GRPCPort    int    `env:"ROLLCALL_GRPC_PORT" envDefault:"8081"`
	HealthCheck bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The attendance HTTP API address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The gRPC health server port")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the running server's health endpoint and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.GRPCPort <= 0 {
		return Config{}, fmt.Errorf("grpc port must be positive, got %d", cfg.GRPCPort)
	}
	return cfg, nil
}

// Run starts the attendance service, or probes it when HealthCheck is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.HealthCheck {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.GRPCPort)
		return platformgrpc.Probe(ctx, addr, server.HealthService, timeouts.HealthProbe)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAttendance, func(ctx context.Context) error {
		return server.Run(ctx, cfg.HTTPAddr, fmt.Sprintf(":%d", cfg.GRPCPort))
	})
}

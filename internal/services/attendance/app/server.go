// Package server wires the attendance runtime: store, lock, and notifier
// selection plus the HTTP API and gRPC health lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/louisbranch/rollcall/internal/platform/timeouts"
	"github.com/louisbranch/rollcall/internal/services/attendance/api/httpapi"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger/redislock"
	"github.com/louisbranch/rollcall/internal/services/attendance/lookup"
	"github.com/louisbranch/rollcall/internal/services/attendance/notify"
	"github.com/louisbranch/rollcall/internal/services/attendance/recurrence"
	"github.com/louisbranch/rollcall/internal/services/attendance/reports"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
	"github.com/louisbranch/rollcall/internal/services/attendance/roster"
	"github.com/louisbranch/rollcall/internal/services/attendance/sessions"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage/memory"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage/sheets"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported by the server.
const HealthService = "rollcall.attendance"

const feedPath = "/api/feed"

// Server hosts the attendance HTTP API and the gRPC health endpoint.
type Server struct {
	httpListener net.Listener
	grpcListener net.Listener
	httpServer   *http.Server
	grpcServer   *grpc.Server
	health       *health.Server
	repo         *repository.Repository
	ledger       *ledger.Ledger
	feed         *notify.Feed
	closers      []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// New creates a configured server listening on the provided addresses.
// Startup configuration comes from the environment.
func New(ctx context.Context, httpAddr, grpcAddr string) (*Server, error) {
	env, err := loadServerEnv()
	if err != nil {
		return nil, err
	}

	s := &Server{}
	if err := s.build(ctx, env, httpAddr, grpcAddr); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) build(ctx context.Context, env settings, httpAddr, grpcAddr string) error {
	store, closeStore, err := openStore(ctx, env)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, namedCloser{name: "store", close: closeStore})
	locks, err := s.openLocks(ctx, env)
	if err != nil {
		return err
	}

	s.feed = notify.NewFeed(log.Printf)
	notifiers := []ledger.Notifier{s.feed}
	if len(env.KafkaBrokers) > 0 {
		writer, err := notify.NewKafkaWriter(env.KafkaBrokers, env.KafkaTopic, log.Printf)
		if err != nil {
			return fmt.Errorf("configure kafka: %w", err)
		}
		publisher := notify.NewKafkaPublisher(writer, log.Printf)
		s.closers = append(s.closers, namedCloser{name: "kafka writer", close: publisher.Close})
		notifiers = append(notifiers, publisher)
		log.Printf("kafka publishing enabled topic=%s", env.KafkaTopic)
	}

	grace := env.LockGrace
	if grace <= 0 {
		grace = -1
	}
	s.repo = repository.New(store, nil, nil)
	directory := lookup.NewService(s.repo)
	s.ledger = ledger.New(s.repo, ledger.Options{
		Grace:       grace,
		Days:        env.days,
		ReadFailure: env.readFailure,
		Locks:       locks,
		Resolver:    directory,
		Notifier:    notify.Multi(notifiers...),
	})

	handler := httpapi.NewHandler(httpapi.Services{
		Attendance: s.ledger,
		Scanner:    ledger.NewScanner(s.ledger, directory),
		Directory:  directory,
		Roster:     roster.NewService(s.repo, nil),
		Schedule: sessions.NewService(s.repo, recurrence.NewExpander(s.repo, nil), sessions.Options{
			CascadeDelete: env.DeleteCascade,
		}),
		Reports: reports.NewService(s.repo, env.days),
		Feed:    s.feed.Handler(),
	})
	s.httpServer = &http.Server{
		Handler: otelhttp.NewHandler(handler, "attendance.http",
			otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != feedPath }),
		),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	s.httpListener, err = net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	s.grpcListener, err = net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", grpcAddr, err)
	}
	return nil
}

// OpenStore opens the row store selected by the environment. The returned
// close function is never nil.
func OpenStore(ctx context.Context) (storage.RowStore, func() error, error) {
	env, err := loadServerEnv()
	if err != nil {
		return nil, nil, err
	}
	return openStore(ctx, env)
}

func openStore(ctx context.Context, env settings) (storage.RowStore, func() error, error) {
	noop := func() error { return nil }
	switch env.Store {
	case StoreMemory:
		log.Printf("using in-memory store; data is lost on exit")
		return memory.New(), noop, nil
	case StoreSheets:
		store, err := sheets.Open(ctx, env.SheetID, option.WithCredentialsJSON([]byte(env.Credentials)))
		if err != nil {
			return nil, nil, fmt.Errorf("open sheets store: %w", err)
		}
		log.Printf("using sheets store spreadsheet_id=%s", env.SheetID)
		return store, noop, nil
	default:
		if dir := filepath.Dir(env.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(env.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Printf("using sqlite store path=%s", env.SQLitePath)
		return store, store.Close, nil
	}
}

func (s *Server) openLocks(ctx context.Context, env settings) (ledger.LockTable, error) {
	if env.LockBackend != LockRedis {
		return ledger.NewMemoryLocks(env.LockTTL), nil
	}
	client, err := redislock.Connect(ctx, env.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	s.closers = append(s.closers, namedCloser{name: "redis client", close: client.Close})
	return redislock.New(client, env.LockTTL), nil
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC health listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves an attendance server until context cancellation.
func Run(ctx context.Context, httpAddr, grpcAddr string) error {
	server, err := New(ctx, httpAddr, grpcAddr)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve bootstraps the schema, then serves HTTP and gRPC health until
// context cancellation. Health reports NOT_SERVING until the schema is in
// place.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- s.grpcServer.Serve(s.grpcListener)
	}()
	log.Printf("health server listening at %v", s.grpcListener.Addr())

	if err := s.repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()
	log.Printf("attendance api listening at %v", s.httpListener.Addr())

	select {
	case <-ctx.Done():
		return s.shutdown(httpErr, grpcErr)
	case err := <-httpErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-grpcErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

func (s *Server) shutdown(httpErr, grpcErr <-chan error) error {
	s.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	s.feed.Close()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown http server: %v", err)
	}
	s.grpcServer.GracefulStop()

	if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}
	if err := <-grpcErr; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}
	return nil
}

// Close releases server resources. Pending check-in locks are released
// before the stores they guard are closed.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.feed != nil {
		s.feed.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			log.Printf("close ledger: %v", err)
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].close(); err != nil {
			log.Printf("close %s: %v", s.closers[i].name, err)
		}
	}
	s.closers = nil
}

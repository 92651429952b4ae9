// enginesrv is the storage engine's gRPC administration server:
// CreateTable, CreateIndex, GetTableInfo, Stats, and Health over a
// single on-disk database file. It is not a SQL front end.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nikhilrao/relstore/internal/logger"
	"github.com/nikhilrao/relstore/internal/server"
	"github.com/nikhilrao/relstore/pkg/engine"
)

var (
	port         = flag.Int("port", 50051, "admin gRPC server port")
	obsPort      = flag.Int("observability-port", 9090, "metrics/health/pprof HTTP port")
	dbPath       = flag.String("db", "relstore.db", "database file path")
	poolSize     = flag.Int("buffer-pool-size", 1024, "buffer pool frame count")
	logLevel     = flag.String("log-level", "info", "debug, info, warn, error")
	logPretty    = flag.Bool("log-pretty", false, "console-format logs instead of JSON")
	enableMetric = flag.Bool("metrics", true, "register Prometheus collectors")
)

func main() {
	flag.Parse()

	logger.Init(logger.Config{Level: *logLevel, Pretty: *logPretty})
	log := logger.Get().Component("enginesrv")

	log.Info("starting relstore admin server").
		Str("db", *dbPath).
		Int("port", *port).
		Send()

	srv, err := server.NewServer(engine.Options{
		Path:           *dbPath,
		BufferPoolSize: *poolSize,
		Logger:         logger.Config{Level: *logLevel, Pretty: *logPretty},
		EnableMetrics:  *enableMetric,
	})
	if err != nil {
		log.Error("failed to open engine").Err(err).Send()
		os.Exit(1)
	}
	defer srv.Close()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Error("failed to listen").Err(err).Send()
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(100*1024*1024),
		grpc.MaxSendMsgSize(100*1024*1024),
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(srv.Metrics(), log)),
	)
	grpcServer.RegisterService(&server.StorageAdminServiceDesc, srv)
	reflection.Register(grpcServer)

	obs := server.NewObservabilityServer(*obsPort, log)
	go func() {
		if err := obs.Start(); err != nil {
			log.Error("observability server exited").Err(err).Send()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down gracefully").Send()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		obs.Shutdown(ctx)

		grpcServer.GracefulStop()
	}()

	log.Info("admin server listening").Int("port", *port).Send()
	if err := grpcServer.Serve(lis); err != nil {
		log.Error("serve failed").Err(err).Send()
		os.Exit(1)
	}
}

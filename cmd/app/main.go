package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"oms_go/internal/app"
	"oms_go/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Connect the OMS: reconciler loop, command channel, stream workers
	oms := bootstrap.OMS
	if err := oms.Connect(ctx); err != nil {
		slog.Error("oms connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.InfoContext(ctx, "oms operational, press Ctrl+C to exit",
		slog.String("symbol", bootstrap.Config.API.Bybit.Symbol))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("shutting down gracefully")
	oms.Kill()

	// Final session report
	fmt.Println(oms.Summary())

	m := infra.GlobalMetrics.Snapshot()
	slog.Info("session metrics",
		slog.Uint64("events", m.EventsProcessed),
		slog.Uint64("duplicates", m.DuplicatesDropped),
		slog.Uint64("conflicts", m.ConflictsDropped),
		slog.Uint64("filled", m.OrdersFilled),
		slog.Uint64("commands", m.CommandsSent),
		slog.Uint64("errors", m.ErrorsTotal))
}

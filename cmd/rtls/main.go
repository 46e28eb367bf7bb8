// Command rtls runs a location engine for one zone. Ranging data arrives
// from a UWB gateway on a serial port, over HTTP or over gRPC; positions are
// served on the same interfaces and recorded to SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktrzcinx/rtls/internal/api"
	"github.com/ktrzcinx/rtls/internal/config"
	"github.com/ktrzcinx/rtls/internal/db"
	"github.com/ktrzcinx/rtls/internal/metrics"
	"github.com/ktrzcinx/rtls/internal/monitoring"
	"github.com/ktrzcinx/rtls/internal/rpc"
	"github.com/ktrzcinx/rtls/internal/rtls"
	"github.com/ktrzcinx/rtls/internal/serialmux"
	"github.com/ktrzcinx/rtls/internal/timeutil"
	"github.com/ktrzcinx/rtls/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen = flag.String("grpc-listen", ":50051", "gRPC listen address (empty disables gRPC)")
	port       = flag.String("port", "", `Serial port of the UWB gateway ("mock" replays a synthetic feed, empty disables serial)`)
	baudRate   = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	mockRate   = flag.Duration("mock-interval", 50*time.Millisecond, "Line interval of the mock gateway feed")
	dbPath     = flag.String("db", "rtls.db", "SQLite recording database (empty disables recording)")
	tuningPath = flag.String("config", config.DefaultConfigPath, "Tuning config JSON")
	layoutPath = flag.String("layout", "", "Zone layout YAML")
	logJSON    = flag.Bool("log-json", false, "Write JSON log lines instead of console output")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// Main
func main() {
	flag.Parse()
	if *showVer {
		fmt.Println("rtls", version.String())
		return
	}

	logger := newLogger(*logJSON)
	monitoring.SetLogger(monitoring.ZerologLogf(logger, "rtls"))
	monitoring.InstallFaultBridge()
	logger.Info().Str("version", version.Version).Str("git_sha", version.GitSHA).Msg("starting rtls")

	if *listen == "" {
		logger.Fatal().Msg("listen address is required")
	}

	tuning, err := loadTuning(*tuningPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tuning config")
	}
	layout := &config.Layout{}
	if *layoutPath != "" {
		if layout, err = config.LoadLayout(*layoutPath); err != nil {
			logger.Fatal().Err(err).Msg("failed to load layout")
		}
	}

	clock := timeutil.RealClock{}
	ticks := timeutil.NewTickSource(clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zoneMetrics := metrics.NewZoneMetrics(layout.ZoneID)
	cfg := rtls.ConfigFromTuning(tuning)
	cfg.ID = layout.ZoneID
	cfg.Observers = []rtls.Observer{zoneMetrics}

	var recordDB *db.DB
	var recorder *db.Recorder
	if *dbPath != "" {
		recordDB, err = db.NewDB(*dbPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open recording database")
		}
		defer recordDB.Close()

		run, err := recordDB.StartRun(layout.ZoneID, clock.Now())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start recording run")
		}
		recorder = db.NewRecorder(db.RecorderConfig{
			Store:      recordDB,
			RunID:      run.RunID,
			Interval:   tuning.GetRecorderFlushInterval(),
			BufferSize: tuning.GetRecorderBufferSize(),
			Clock:      clock,
		})
		cfg.Observers = append(cfg.Observers, recorder)
		logger.Info().Str("run", run.RunID).Str("db", *dbPath).Msg("recording enabled")
	}

	zone := rtls.NewSyncZone(rtls.Init(cfg))
	if err := seedLayout(zone, layout); err != nil {
		logger.Fatal().Err(err).Msg("failed to register layout devices")
	}

	gateway, err := openGateway(*port, layout)
	if err != nil {
		logger.Fatal().Err(err).Str("port", *port).Msg("failed to open gateway")
	}
	defer gateway.Close()
	if err := gateway.Initialize(); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize gateway")
	}

	var wg sync.WaitGroup

	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = recorder.Run(ctx)
		}()
	}

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("failed to monitor serial port: %v", err)
		}
		monitoring.Logf("monitor routine terminated")
	}()

	ingest := serialmux.NewIngest(zone, ticks.Now)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ingest.Run(ctx, gateway)
		accepted, rejected, ignored := ingest.Stats()
		monitoring.Logf("ingest stopped: accepted=%d rejected=%d ignored=%d", accepted, rejected, ignored)
	}()

	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to listen for gRPC")
		}
		grpcServer := rpc.NewServer(rpc.NewZoneService(zone, ticks.Now, clock))
		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				<-ctx.Done()
				grpcServer.GracefulStop()
			}()
			monitoring.Logf("gRPC server listening on %s", lis.Addr())
			if err := grpcServer.Serve(lis); err != nil {
				monitoring.Logf("gRPC server error: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(zone, ticks.Now)
		apiServer.SetMetricsHandler(zoneMetrics.Handler())
		mux := apiServer.ServeMux()
		gateway.AttachAdminRoutes(mux)
		if recordDB != nil {
			if err := recordDB.AttachAdminRoutes(mux); err != nil {
				monitoring.Logf("failed to attach db admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(api.RecoverMiddleware(mux)),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			monitoring.Logf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("failed to start server")
			}
		}()

		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Logf("HTTP server force close error: %v", err)
			}
		}
		monitoring.Logf("HTTP server routine stopped")
	}()

	wg.Wait()
	if recorder != nil {
		logger.Info().Uint64("dropped", recorder.Dropped()).Msg("recorder stopped")
	}
	logger.Info().Int64("faults", monitoring.FaultCount()).Msg("graceful shutdown complete")
}

func newLogger(jsonOutput bool) zerolog.Logger {
	if jsonOutput {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// loadTuning reads the tuning file. A missing file at the default path
// falls back to built-in defaults.
func loadTuning(path string) (*config.TuningConfig, error) {
	cfg, err := config.LoadTuningConfig(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
		monitoring.Logf("no tuning config at %s, using defaults", path)
		return config.EmptyTuningConfig(), nil
	}
	return nil, err
}

// seedLayout registers the layout's fixed devices.
func seedLayout(zone *rtls.SyncZone, layout *config.Layout) error {
	for _, d := range layout.Devices {
		if err := zone.AddDevice(d.ID, d.X, d.Y, d.Z); err != nil {
			return err
		}
	}
	return nil
}

// openGateway selects the serial source for name.
func openGateway(name string, layout *config.Layout) (serialmux.SerialMuxInterface, error) {
	switch name {
	case "":
		return serialmux.NewDisabledSerialMux(), nil
	case "mock":
		anchors := layout.Devices
		if len(anchors) == 0 {
			anchors = defaultAnchors
		}
		return serialmux.NewReplaySerialMux(syntheticFeed(anchors, 36), *mockRate), nil
	default:
		return serialmux.NewRealSerialMux(name, serialmux.PortOptions{BaudRate: *baudRate})
	}
}

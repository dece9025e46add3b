package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/markerview/internal/config"
	"github.com/OCAP2/markerview/internal/logging"
	intOtel "github.com/OCAP2/markerview/internal/otel"
	"github.com/OCAP2/markerview/internal/server"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const AppName = "markerview"

// configDirEnv overrides the directory markerview.cfg.json is read from.
const configDirEnv = "MARKERVIEW_CONFIG_DIR"

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// EventLogger receives view event registry logs
	EventLogger *logging.EventLogger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime = time.Now()

	logFile *os.File
	bridge  *server.Server
)

func configDir() string {
	if dir := os.Getenv(configDirEnv); dir != "" {
		return dir
	}
	return "."
}

// setup loads the config and wires logging: console until the config is
// read, then the session log file with optional OTel and Graylog sinks.
func setup() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, config.GetString("logLevel"), nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir()); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	var fileOut io.Writer
	f, logPath, err := logging.OpenSessionLog(config.GetString("logsDir"), AppName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
	} else {
		logFile = f
		fileOut = f
	}

	otelCfg, err := config.GetOTelConfig()
	if err != nil {
		Logger.Error("Invalid OTel config", "error", err)
	} else if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      fileOut,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var sinks []io.Writer
	graylogCfg, err := config.GetGraylogConfig()
	if err != nil {
		Logger.Error("Invalid Graylog config", "error", err)
	} else if graylogCfg.Enabled {
		w, err := logging.NewGelfSink(graylogCfg.Address, AppName)
		if err != nil {
			Logger.Error("Failed to connect Graylog sink", "error", err, "address", graylogCfg.Address)
		} else {
			sinks = append(sinks, w)
		}
	}

	SlogManager.Setup(fileOut, config.GetString("logLevel"), OTelProvider.LoggerProvider(), sinks...)
	SlogManager.SetContextProvider(func() []slog.Attr {
		attrs := []slog.Attr{slog.String("version", Version)}
		if bridge != nil {
			attrs = append(attrs, slog.Int("sessions", bridge.Sessions()))
		}
		return attrs
	})
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logPath)

	eventOut := io.Writer(os.Stderr)
	if fileOut != nil {
		eventOut = fileOut
	}
	EventLogger = logging.NewEventLogger(
		zerolog.New(eventOut).Level(zerologLevel(config.GetString("logLevel"))).
			With().Timestamp().Str("component", "events").Logger(),
	)
}

func zerologLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
	}
	if err := OTelProvider.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shutting down OTel: %v\n", err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "%s %s (built %s)\n\n", AppName, Version, BuildDate)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  markerview rescale <in.json[.gz]> <width> <height> <out.json[.gz]>")
	fmt.Fprintln(w, "  markerview inspect <in.json[.gz]>")
	fmt.Fprintln(w, "  markerview upload <in.json[.gz]> [name] [tag]")
	fmt.Fprintln(w, "  markerview serve")
}

func run(args []string) int {
	var err error
	switch strings.ToLower(args[0]) {
	case "rescale":
		err = rescale(args[1:], os.Stdout)
	case "inspect":
		err = inspect(args[1:], os.Stdout)
	case "upload":
		err = upload(context.Background(), args[1:], os.Stdout)
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = serve(ctx)
	default:
		usage(os.Stderr)
		return 2
	}
	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}

	setup()
	code := run(args)
	shutdown()
	os.Exit(code)
}

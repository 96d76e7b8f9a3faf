// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names attached to package loggers.
const (
	ComponentClient    = "storesync"
	ComponentRouter    = "router"
	ComponentBatch     = "batch"
	ComponentInventory = "inventory"
	ComponentEnrich    = "enrich"
	ComponentREST      = "rest-client"
	ComponentRateLimit = "ratelimit"
	ComponentProxy     = "proxy"
)

// DefaultService is the service field of every log line.
const DefaultService = "storesync"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is added to every line. Empty disables the field.
	Service string

	// Fields are static key/value pairs added to every line, e.g. the store
	// a process syncs.
	Fields map[string]string

	// Caller adds the file:line of the log call.
	Caller bool
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
		Service: DefaultService,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	keys := make([]string, 0, len(cfg.Fields))
	for k := range cfg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ctx = ctx.Str(k, cfg.Fields[k])
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}

	logger := ctx.Logger()
	log.Logger = logger
	return logger
}

// ParseLevel validates a level read from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithOperation tags l with a public operation and its correlation mark.
func WithOperation(l zerolog.Logger, operation, mark string) zerolog.Logger {
	return l.With().Str("operation", operation).Str("mark", mark).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Per-item work of an operation (order requested, product created)
//   - Cache operations (hit/miss, key, TTL)
//   - Scan convergence and enrichment pass sizes
//   - Router decisions (resolved version, legacy override)
//
// Info: Normal operation events
//   - Operation started/finished with mark and result count
//   - Order result parts
//   - Elements that succeeded after retry
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts exhausted for one element
//   - Unknown SKUs skipped
//   - Cache errors (fallback to remote query)
//   - Limiter budget running low
//
// Error: Error conditions requiring attention
//   - Failed operations (wrapped in an OperationError)
//   - Inventory items not updated
//   - Platform unreachable
//   - Configuration errors
//
// Context Fields:
//   - operation: public operation name
//   - mark: correlation id shared by every line of one operation
//   - params: truncated JSON summary of the operation input
//   - batch: executor call site name
//   - attempt: retry attempt number
//   - strategy: inventory write strategy (piecewise, bulk)
//   - endpoint: resource protocol path
//   - status_code: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, decode)
//   - duration: operation or request duration

package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatText    = "text"
	LogFormatJSON    = "json"
)

// Logger holds logger configuration
type Logger struct {
	Level  string
	Format string
	Output string
}

// Flags returns CLI flags for logger configuration
func (c *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &c.Level,
			Sources:     cli.EnvVars("COMICDL_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, text, json)",
			Value:       LogFormatConsole,
			Destination: &c.Format,
			Sources:     cli.EnvVars("COMICDL_LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log destination (stdout, stderr or a file path)",
			Value:       "stderr",
			Destination: &c.Output,
			Sources:     cli.EnvVars("COMICDL_LOG_OUTPUT"),
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, goerr.New("invalid log level", goerr.V("level", s), goerr.T(types.ErrTagFatal))
	}
}

func (c *Logger) writer() (io.Writer, func(), error) {
	switch c.Output {
	case "", "stderr", "-":
		return os.Stderr, func() {}, nil
	case "stdout":
		return os.Stdout, func() {}, nil
	}

	f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, func() {}, goerr.Wrap(err, "failed to open log file", goerr.V("path", c.Output), goerr.T(types.ErrTagFatal))
	}
	return f, func() { _ = f.Close() }, nil
}

// Configure builds the logger. Secrets tagged with `masq:"secret"` are
// redacted in every format. The returned func releases the log file, if
// any, and is never nil.
func (c *Logger) Configure() (*slog.Logger, func(), error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, func() {}, err
	}

	w, closer, err := c.writer()
	if err != nil {
		return nil, func() {}, err
	}

	redact := masq.New(masq.WithTag("secret"))

	var handler slog.Handler
	switch strings.ToLower(c.Format) {
	case LogFormatConsole, "":
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(redact),
			clog.WithSource(level == slog.LevelDebug),
		)
	case LogFormatText:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: redact})
	case LogFormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: redact})
	default:
		closer()
		return nil, func() {}, goerr.New("invalid log format", goerr.V("format", c.Format), goerr.T(types.ErrTagFatal))
	}

	return slog.New(handler), closer, nil
}

package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUsage reports a bad command line. main prints the usage line and exits 1.
var ErrUsage = errors.New("usage: linechat <port>")

// Config contains all runtime configuration: the port argument plus LINECHAT_* environment variables.
type Config struct {
	Port       int
	ListenHost string

	LogLevel  string
	LogFormat string
	LogColor  bool

	WriteTimeout   time.Duration
	MaxLineBytes   int
	OutboxLimit    int
	TCPUserTimeout time.Duration
	ShutdownGrace  time.Duration

	// Ops listener (/healthz, /readyz, /metrics, /sessions, /ws). Empty disables it.
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	WSOriginPatterns  []string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	AuditSchema string
}

// LoadConfig parses args (without the program name) and the environment.
// Only the first argument is read; trailing ones are ignored.
func LoadConfig(args []string) (Config, error) {
	if len(args) < 1 {
		return Config{}, ErrUsage
	}
	port, err := parsePort(args[0])
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	return Config{
		Port:       port,
		ListenHost: EnvString("LINECHAT_LISTEN_HOST", ""),

		LogLevel:  EnvString("LINECHAT_LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(EnvString("LINECHAT_LOG_FORMAT", "json")),
		LogColor:  EnvBool("LINECHAT_LOG_COLOR", false),

		WriteTimeout:   EnvDuration("LINECHAT_WRITE_TIMEOUT", 10*time.Second),
		MaxLineBytes:   EnvInt("LINECHAT_MAX_LINE_BYTES", 64<<10),
		OutboxLimit:    EnvInt("LINECHAT_OUTBOX_LIMIT", 0),
		TCPUserTimeout: EnvDuration("LINECHAT_TCP_USER_TIMEOUT", 0),
		ShutdownGrace:  EnvDuration("LINECHAT_SHUTDOWN_GRACE", 10*time.Second),

		HTTPAddr:          EnvString("LINECHAT_HTTP_ADDR", ""),
		ReadHeaderTimeout: EnvDuration("LINECHAT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		WSOriginPatterns:  EnvCSV("LINECHAT_WS_ORIGIN_PATTERNS", []string{"localhost", "127.0.0.1"}),

		DatabaseURL: EnvString("LINECHAT_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("LINECHAT_DB_MAX_CONNS", 4),
		DBMinConns:  EnvInt32("LINECHAT_DB_MIN_CONNS", 0),
		AuditSchema: EnvString("LINECHAT_AUDIT_SCHEMA", "linechat"),
	}, nil
}

// ListenAddr is the TCP address the chat listener binds.
func (c Config) ListenAddr() string {
	return joinHostPort(c.ListenHost, c.Port)
}

func parsePort(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n < 0 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return n, nil
}

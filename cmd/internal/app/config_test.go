package app

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestLoadConfig_Usage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
	}{
		{name: "no args", args: nil},
		{name: "not a number", args: []string{"chat"}},
		{name: "negative", args: []string{"-1"}},
		{name: "too large", args: []string{"65536"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadConfig(tc.args)
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("LoadConfig(%q) err=%v want ErrUsage", tc.args, err)
			}
		})
	}
}

func TestLoadConfig_IgnoresTrailingArgs(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig([]string{"9000", "extra", "--verbose"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("Port=%d want=9000", cfg.Port)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{
		"LINECHAT_LISTEN_HOST", "LINECHAT_LOG_LEVEL", "LINECHAT_LOG_FORMAT", "LINECHAT_WRITE_TIMEOUT",
		"LINECHAT_MAX_LINE_BYTES", "LINECHAT_OUTBOX_LIMIT", "LINECHAT_SHUTDOWN_GRACE", "LINECHAT_HTTP_ADDR",
		"LINECHAT_WS_ORIGIN_PATTERNS", "LINECHAT_DATABASE_URL", "LINECHAT_AUDIT_SCHEMA",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig([]string{" 9000 "})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != 9000 {
		t.Fatalf("Port=%d want=9000", cfg.Port)
	}
	if got := cfg.ListenAddr(); got != ":9000" {
		t.Fatalf("ListenAddr()=%q want=%q", got, ":9000")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log level/format=%q/%q want=info/json", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.WriteTimeout != 10*time.Second || cfg.ShutdownGrace != 10*time.Second {
		t.Fatalf("timeouts=%v/%v want=10s/10s", cfg.WriteTimeout, cfg.ShutdownGrace)
	}
	if cfg.MaxLineBytes != 64<<10 || cfg.OutboxLimit != 0 {
		t.Fatalf("limits=%d/%d want=%d/0", cfg.MaxLineBytes, cfg.OutboxLimit, 64<<10)
	}
	if cfg.HTTPAddr != "" || cfg.DatabaseURL != "" {
		t.Fatalf("optional surfaces enabled by default: http=%q db=%q", cfg.HTTPAddr, cfg.DatabaseURL)
	}
	if cfg.AuditSchema != "linechat" {
		t.Fatalf("AuditSchema=%q want=linechat", cfg.AuditSchema)
	}
	if want := []string{"localhost", "127.0.0.1"}; !reflect.DeepEqual(cfg.WSOriginPatterns, want) {
		t.Fatalf("WSOriginPatterns=%q want=%q", cfg.WSOriginPatterns, want)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LINECHAT_LISTEN_HOST", "127.0.0.1")
	t.Setenv("LINECHAT_LOG_FORMAT", "PRETTY")
	t.Setenv("LINECHAT_WRITE_TIMEOUT", "250ms")
	t.Setenv("LINECHAT_MAX_LINE_BYTES", "1024")
	t.Setenv("LINECHAT_OUTBOX_LIMIT", "32")
	t.Setenv("LINECHAT_HTTP_ADDR", "127.0.0.1:9100")
	t.Setenv("LINECHAT_WS_ORIGIN_PATTERNS", "chat.example.com, ,localhost")
	t.Setenv("LINECHAT_DB_MAX_CONNS", "8")
	t.Setenv("LINECHAT_SHUTDOWN_GRACE", "not-a-duration")

	cfg, err := LoadConfig([]string{"0"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if got := cfg.ListenAddr(); got != "127.0.0.1:0" {
		t.Fatalf("ListenAddr()=%q want=%q", got, "127.0.0.1:0")
	}
	if cfg.LogFormat != "pretty" {
		t.Fatalf("LogFormat=%q want=pretty", cfg.LogFormat)
	}
	if cfg.WriteTimeout != 250*time.Millisecond {
		t.Fatalf("WriteTimeout=%v want=250ms", cfg.WriteTimeout)
	}
	if cfg.MaxLineBytes != 1024 || cfg.OutboxLimit != 32 {
		t.Fatalf("limits=%d/%d want=1024/32", cfg.MaxLineBytes, cfg.OutboxLimit)
	}
	if cfg.HTTPAddr != "127.0.0.1:9100" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if want := []string{"chat.example.com", "localhost"}; !reflect.DeepEqual(cfg.WSOriginPatterns, want) {
		t.Fatalf("WSOriginPatterns=%q want=%q", cfg.WSOriginPatterns, want)
	}
	if cfg.DBMaxConns != 8 {
		t.Fatalf("DBMaxConns=%d want=8", cfg.DBMaxConns)
	}
	if cfg.ShutdownGrace != 10*time.Second {
		t.Fatalf("ShutdownGrace=%v want default 10s on bad input", cfg.ShutdownGrace)
	}
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Recovery modes.
const (
	RecoveryModeFull     = "FULL"
	RecoveryModeFraction = "FRACTION"
)

// Config captures process-level configuration.
type Config struct {
	Addr        string
	DatabaseURL string // empty selects in-memory stores
	CatalogFile string

	KafkaBrokers       []string // empty disables the outbox relay publisher
	KafkaTopic         string
	OutboxPollInterval time.Duration

	LogLevel slog.Level

	RecoveryMode        string
	RecoveryFractionBPS int64

	ConfidenceThreshold       float64
	SkewWindow                time.Duration
	ResidentialWeightLimitLbs float64
	DimDivisor                float64

	AuditWorkers    int
	TxTimeout       time.Duration
	ShutdownTimeout time.Duration
}

// Defaults used when the environment leaves a value unset.
const (
	DefaultAddr                      = ":8080"
	DefaultCatalogFile               = "configs/catalog.yaml"
	DefaultKafkaTopic                = "carrier-alpha.recovery-events"
	DefaultOutboxPollInterval        = 2 * time.Second
	DefaultConfidenceThreshold       = 0.5
	DefaultSkewWindow                = 2 * time.Hour
	DefaultResidentialWeightLimitLbs = 50
	DefaultDimDivisor                = 139
	DefaultAuditWorkers              = 8
	DefaultTxTimeout                 = 5 * time.Second
	DefaultShutdownTimeout           = 10 * time.Second
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load builds a Config from an arbitrary lookup. All invalid values are reported together.
func Load(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}
	cfg := Config{
		Addr:                      p.str("CARRIER_ALPHA_ADDR", DefaultAddr),
		DatabaseURL:               p.str("DATABASE_URL", ""),
		CatalogFile:               p.str("CATALOG_FILE", DefaultCatalogFile),
		KafkaBrokers:              p.list("KAFKA_BROKERS"),
		KafkaTopic:                p.str("KAFKA_TOPIC", DefaultKafkaTopic),
		OutboxPollInterval:        p.duration("OUTBOX_POLL_INTERVAL", DefaultOutboxPollInterval),
		LogLevel:                  p.level("LOG_LEVEL", slog.LevelInfo),
		RecoveryMode:              strings.ToUpper(p.str("RECOVERY_MODE", RecoveryModeFull)),
		RecoveryFractionBPS:       p.integer("RECOVERY_FRACTION_BPS", 10000),
		ConfidenceThreshold:       p.number("TZ_CONFIDENCE_THRESHOLD", DefaultConfidenceThreshold),
		SkewWindow:                p.duration("TZ_SKEW_WINDOW", DefaultSkewWindow),
		ResidentialWeightLimitLbs: p.number("RESIDENTIAL_WEIGHT_LIMIT_LBS", DefaultResidentialWeightLimitLbs),
		DimDivisor:                p.number("DIM_DIVISOR", DefaultDimDivisor),
		AuditWorkers:              int(p.integer("AUDIT_WORKERS", DefaultAuditWorkers)),
		TxTimeout:                 p.duration("TX_TIMEOUT", DefaultTxTimeout),
		ShutdownTimeout:           p.duration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
	}

	switch cfg.RecoveryMode {
	case RecoveryModeFull, RecoveryModeFraction:
	default:
		p.fail("RECOVERY_MODE", fmt.Errorf("must be %s or %s, got %q", RecoveryModeFull, RecoveryModeFraction, cfg.RecoveryMode))
	}
	if cfg.RecoveryFractionBPS < 0 || cfg.RecoveryFractionBPS > 10000 {
		p.fail("RECOVERY_FRACTION_BPS", errors.New("must be between 0 and 10000"))
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		p.fail("TZ_CONFIDENCE_THRESHOLD", errors.New("must be between 0 and 1"))
	}
	if cfg.SkewWindow < 0 {
		p.fail("TZ_SKEW_WINDOW", errors.New("cannot be negative"))
	}
	if cfg.ResidentialWeightLimitLbs <= 0 {
		p.fail("RESIDENTIAL_WEIGHT_LIMIT_LBS", errors.New("must be positive"))
	}
	if cfg.DimDivisor <= 0 {
		p.fail("DIM_DIVISOR", errors.New("must be positive"))
	}
	if cfg.AuditWorkers < 1 {
		p.fail("AUDIT_WORKERS", errors.New("must be at least 1"))
	}
	if cfg.OutboxPollInterval <= 0 {
		p.fail("OUTBOX_POLL_INTERVAL", errors.New("must be positive"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *parser) list(key string) []string {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) integer(key string, def int64) int64 {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) number(key string, def float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, err)
		return def
	}
	return l
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Store      StoreConfig      `koanf:"store"`
	OTLP       OTLPConfig       `koanf:"otlp"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Log        LogConfig        `koanf:"log"`
	Resilience ResilienceConfig `koanf:"resilience"`
	Shutdown   ShutdownConfig   `koanf:"shutdown"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `koanf:"readtimeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"writetimeout" validate:"gt=0"`
	IdleTimeout       time.Duration `koanf:"idletimeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"readheadertimeout" validate:"gt=0"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig locates the product collection. URI, Database and Collection are
// only needed by the mongo driver.
type StoreConfig struct {
	Driver         string        `koanf:"driver" validate:"oneof=mongo memory"`
	URI            string        `koanf:"uri" validate:"required_if=Driver mongo"`
	Database       string        `koanf:"database" validate:"required_if=Driver mongo"`
	Collection     string        `koanf:"collection" validate:"required_if=Driver mongo"`
	ConnectTimeout time.Duration `koanf:"connecttimeout" validate:"gt=0"`
}

type OTLPConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `koanf:"servicename" validate:"required"`
	Environment string `koanf:"environment"`
}

type MetricsConfig struct {
	// DurationMS adds a millisecond request duration histogram next to the
	// standard seconds-based one.
	DurationMS bool `koanf:"durationms"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type ResilienceConfig struct {
	Enabled             bool          `koanf:"enabled"`
	MaxAttempts         uint          `koanf:"maxattempts" validate:"required_if=Enabled true"`
	InitialBackoff      time.Duration `koanf:"initialbackoff"`
	ConsecutiveFailures uint32        `koanf:"consecutivefailures" validate:"required_if=Enabled true"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return nil
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString("\n--- Server ---\n")
	fmt.Fprintf(&b, "  server.addr: %s\n", c.Server.Addr())
	fmt.Fprintf(&b, "  server.readtimeout: %s\n", c.Server.ReadTimeout)
	fmt.Fprintf(&b, "  server.writetimeout: %s\n", c.Server.WriteTimeout)
	fmt.Fprintf(&b, "  server.idletimeout: %s\n", c.Server.IdleTimeout)
	fmt.Fprintf(&b, "  server.readheadertimeout: %s\n", c.Server.ReadHeaderTimeout)

	b.WriteString("\n--- Store ---\n")
	fmt.Fprintf(&b, "  store.driver: %s\n", c.Store.Driver)
	fmt.Fprintf(&b, "  store.uri: %s\n", maskURI(c.Store.URI))
	fmt.Fprintf(&b, "  store.database: %s\n", c.Store.Database)
	fmt.Fprintf(&b, "  store.collection: %s\n", c.Store.Collection)
	fmt.Fprintf(&b, "  store.connecttimeout: %s\n", c.Store.ConnectTimeout)

	b.WriteString("\n--- Observability & Logging ---\n")
	fmt.Fprintf(&b, "  otlp.enabled: %t\n", c.OTLP.Enabled)
	fmt.Fprintf(&b, "  otlp.endpoint: %s\n", c.OTLP.Endpoint)
	fmt.Fprintf(&b, "  otlp.servicename: %s\n", c.OTLP.ServiceName)
	fmt.Fprintf(&b, "  otlp.environment: %s\n", c.OTLP.Environment)
	fmt.Fprintf(&b, "  metrics.durationms: %t\n", c.Metrics.DurationMS)
	fmt.Fprintf(&b, "  log.level: %s\n", c.Log.Level)

	b.WriteString("\n--- Resilience ---\n")
	fmt.Fprintf(&b, "  resilience.enabled: %t\n", c.Resilience.Enabled)
	fmt.Fprintf(&b, "  resilience.maxattempts: %d\n", c.Resilience.MaxAttempts)
	fmt.Fprintf(&b, "  resilience.initialbackoff: %s\n", c.Resilience.InitialBackoff)
	fmt.Fprintf(&b, "  resilience.consecutivefailures: %d\n", c.Resilience.ConsecutiveFailures)
	fmt.Fprintf(&b, "  resilience.opentimeout: %s\n", c.Resilience.OpenTimeout)

	b.WriteString("\n--- Application Behavior ---\n")
	fmt.Fprintf(&b, "  shutdown.timeout: %s\n", c.Shutdown.Timeout)

	return b.String()
}

// maskURI hides credentials embedded in a connection string
func maskURI(uri string) string {
	if uri == "" {
		return "<not configured>"
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "****"
	}
	if u.User == nil {
		return u.String()
	}
	u.User = nil
	return strings.Replace(u.String(), "://", "://****@", 1)
}

package httpd

import (
	"net"
	"strconv"
	"time"

	"github.com/influxdata/kflow/tlsconfig"
	"github.com/influxdata/kflow/toml"
	"github.com/pkg/errors"
)

const (
	DefaultBindAddress     = ":9094"
	DefaultShutdownTimeout = toml.Duration(10 * time.Second)
	// DefaultMaxBodySize bounds the CSV body accepted by the apply endpoint.
	DefaultMaxBodySize = toml.Size(32 << 20)
)

type Config struct {
	BindAddress      string        `toml:"bind-address"`
	LogEnabled       bool          `toml:"log-enabled"`
	GZIP             bool          `toml:"gzip"`
	HTTPSEnabled     bool          `toml:"https-enabled"`
	HTTPSCertificate string        `toml:"https-certificate"`
	HTTPSPrivateKey  string        `toml:"https-private-key"`
	ShutdownTimeout  toml.Duration `toml:"shutdown-timeout"`
	MaxBodySize      toml.Size     `toml:"max-body-size"`

	TLS tlsconfig.Config `toml:"tls"`
}

func NewConfig() Config {
	return Config{
		BindAddress:      DefaultBindAddress,
		LogEnabled:       true,
		GZIP:             true,
		HTTPSCertificate: "/etc/ssl/kflow.pem",
		ShutdownTimeout:  DefaultShutdownTimeout,
		MaxBodySize:      DefaultMaxBodySize,
		TLS:              tlsconfig.NewConfig(),
	}
}

func (c Config) Validate() error {
	if _, err := c.Port(); err != nil {
		return err
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown-timeout must not be negative")
	}
	if c.HTTPSEnabled {
		if c.HTTPSCertificate == "" {
			return errors.New("https-certificate is required when https is enabled")
		}
		if err := c.TLS.Validate(); err != nil {
			return errors.Wrap(err, "invalid tls config")
		}
	}
	return nil
}

// Port returns the port of the bind address.
func (c Config) Port() (int, error) {
	_, portStr, err := net.SplitHostPort(c.BindAddress)
	if err != nil {
		return -1, errors.Wrapf(err, "invalid http bind address %s", c.BindAddress)
	}
	port, err := strconv.ParseInt(portStr, 10, 32)
	if err != nil {
		return -1, errors.Wrapf(err, "invalid http bind address port %s", portStr)
	}
	return int(port), nil
}

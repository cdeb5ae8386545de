package mqtt

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/influxdata/kflow/toml"
	"github.com/pkg/errors"
)

const (
	DefaultClientID = "kflow"
	DefaultTopic    = "kflow"
	DefaultTimeout  = 5 * time.Second
)

// QoSLevel is the MQTT delivery guarantee of a published message.
type QoSLevel byte

const (
	AtMostOnce QoSLevel = iota
	AtLeastOnce
	ExactlyOnce
)

func (q QoSLevel) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	case ExactlyOnce:
		return "exactly-once"
	default:
		return fmt.Sprintf("qos(%d)", byte(q))
	}
}

// UnmarshalText accepts either the level number or its name.
func (q *QoSLevel) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "0", "at-most-once":
		*q = AtMostOnce
	case "1", "at-least-once":
		*q = AtLeastOnce
	case "2", "exactly-once":
		*q = ExactlyOnce
	default:
		return fmt.Errorf("invalid qos level %q", string(text))
	}
	return nil
}

func (q QoSLevel) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

type Config struct {
	Enabled bool `toml:"enabled"`
	// URL of the broker, e.g. tcp://localhost:1883.
	// Valid schemes are tcp, ssl, ws and wss.
	URL string `toml:"url"`

	ClientID string `toml:"client-id"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	// Topic records are published to unless a sink names its own.
	Topic    string   `toml:"topic"`
	QoS      QoSLevel `toml:"qos"`
	Retained bool     `toml:"retained"`

	// Timeout on connecting and publishing.
	Timeout toml.Duration `toml:"timeout"`

	// Path to CA file
	SSLCA string `toml:"ssl-ca"`
	// Path to host cert file
	SSLCert string `toml:"ssl-cert"`
	// Path to cert key file
	SSLKey string `toml:"ssl-key"`
	// Use SSL but skip chain & host verification
	InsecureSkipVerify bool `toml:"insecure-skip-verify"`
}

func NewConfig() Config {
	return Config{
		ClientID: DefaultClientID,
		Topic:    DefaultTopic,
		Timeout:  toml.Duration(DefaultTimeout),
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.URL == "" {
		return errors.New("must specify url of the mqtt broker")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", c.URL)
	}
	switch u.Scheme {
	case "tcp", "ssl", "ws", "wss":
	default:
		return fmt.Errorf("invalid url scheme %q, must be one of tcp, ssl, ws or wss", u.Scheme)
	}
	if c.ClientID == "" {
		return errors.New("must specify client-id")
	}
	if c.Topic == "" {
		return errors.New("must specify default topic")
	}
	if c.QoS > ExactlyOnce {
		return fmt.Errorf("invalid qos level %d", c.QoS)
	}
	return nil
}

func (c Config) secure() bool {
	return strings.HasPrefix(c.URL, "ssl:") || strings.HasPrefix(c.URL, "wss:")
}

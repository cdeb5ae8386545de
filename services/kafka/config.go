package kafka

import (
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/influxdata/kflow/tlsconfig"
	"github.com/influxdata/kflow/toml"
	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultID      = "default"
	DefaultTopic   = "kflow"
)

type Config struct {
	Enabled bool `toml:"enabled"`
	// ID identifies the client to the brokers.
	ID string `toml:"id"`
	// Brokers is a list of host:port addresses of Kafka brokers.
	Brokers []string `toml:"brokers"`
	// Topic records are written to unless a sink names its own.
	Topic string `toml:"topic"`
	// KeyAttribute names the attribute whose value is the message key.
	// Messages have no key if empty.
	KeyAttribute string `toml:"key-attribute"`
	// PartitionAlgorithm is one of crc32, murmur2, murmur3 or fnv-1a.
	// Only used for keyed messages.
	PartitionAlgorithm string `toml:"partition-algorithm"`
	// Timeout on network operations with the brokers.
	// If 0 a default of 10s will be used.
	Timeout toml.Duration `toml:"timeout"`
	// UseSSL enable ssl communication
	// Must be true for the other ssl options to take effect.
	UseSSL bool `toml:"use-ssl"`
	// Path to CA file
	SSLCA string `toml:"ssl-ca"`
	// Path to host cert file
	SSLCert string `toml:"ssl-cert"`
	// Path to cert key file
	SSLKey string `toml:"ssl-key"`
	// Use SSL but skip chain & host verification
	InsecureSkipVerify bool `toml:"insecure-skip-verify"`
	// Authentication using SASL
	SASLAuth
}

func NewConfig() Config {
	return Config{
		ID:      DefaultID,
		Topic:   DefaultTopic,
		Timeout: toml.Duration(DefaultTimeout),
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ID == "" {
		return errors.New("id must not be empty")
	}
	if len(c.Brokers) == 0 {
		return errors.New("no brokers specified, must provide at least one broker URL")
	}
	if c.Topic == "" {
		return errors.New("topic must not be empty")
	}
	if _, err := partitioner(c.PartitionAlgorithm); err != nil {
		return err
	}
	return c.SASLAuth.Validate()
}

func partitioner(algorithm string) (sarama.PartitionerConstructor, error) {
	switch algorithm {
	case "crc32", "":
		// sarama.NewCustomHashPartitioner distributes hashes differently from other kafka clients.
		return newCRCPartitioner, nil
	case "murmur2":
		return newMurmur2, nil
	case "murmur3":
		return sarama.NewCustomHashPartitioner(murmur3.New32), nil
	case "fnv-1a":
		return sarama.NewHashPartitioner, nil
	default:
		return nil, fmt.Errorf("invalid partition algorithm: %q", algorithm)
	}
}

// producerConfig returns the sarama configuration of a synchronous producer.
func (c Config) producerConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()

	p, err := partitioner(c.PartitionAlgorithm)
	if err != nil {
		return nil, err
	}
	cfg.Producer.Partitioner = p
	// Required by sarama.SyncProducer
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.ClientID = c.ID
	cfg.Metadata.Full = false // we only want to grab metadata for the topics we care about

	if c.UseSSL {
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config, err = tlsconfig.Create(c.SSLCA, c.SSLCert, c.SSLKey, c.InsecureSkipVerify)
		if err != nil {
			return nil, err
		}
	}
	if c.Timeout > 0 {
		cfg.Net.DialTimeout = time.Duration(c.Timeout)
		cfg.Net.WriteTimeout = time.Duration(c.Timeout)
		cfg.Net.ReadTimeout = time.Duration(c.Timeout)
	}

	if err := c.SASLAuth.SetSASLConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// connectionChanged reports whether a producer for old can not be used for new.
func connectionChanged(old, new Config) bool {
	if len(old.Brokers) != len(new.Brokers) {
		return true
	}
	for i, b := range old.Brokers {
		if new.Brokers[i] != b {
			return true
		}
	}
	return old.ID != new.ID ||
		old.PartitionAlgorithm != new.PartitionAlgorithm ||
		old.Timeout != new.Timeout ||
		old.UseSSL != new.UseSSL ||
		old.SSLCA != new.SSLCA ||
		old.SSLCert != new.SSLCert ||
		old.SSLKey != new.SSLKey ||
		old.InsecureSkipVerify != new.InsecureSkipVerify ||
		!old.SASLAuth.Equals(&new.SASLAuth)
}

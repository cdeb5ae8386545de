// Package tlsconfig builds tls.Config values for clients and servers.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Create returns a client tls.Config from the given CA, cert and key files.
// Empty paths are skipped, but cert and key must be given together.
func Create(caFile, certFile, keyFile string, insecureSkipVerify bool) (*tls.Config, error) {
	t := &tls.Config{
		InsecureSkipVerify: insecureSkipVerify,
	}
	switch {
	case certFile != "" && keyFile != "":
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, errors.Wrap(err, "could not load TLS client key/certificate")
		}
		t.Certificates = []tls.Certificate{cert}
	case certFile != "":
		return nil, errors.New("must provide both key and cert files: only cert file provided")
	case keyFile != "":
		return nil, errors.New("must provide both key and cert files: only key file provided")
	}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.Wrap(err, "could not load TLS CA")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %q", caFile)
		}
		t.RootCAs = pool
	}
	return t, nil
}

// Config restricts the cipher suites and protocol versions a server accepts.
type Config struct {
	Ciphers    []string `toml:"ciphers"`
	MinVersion string   `toml:"min-version"`
	MaxVersion string   `toml:"max-version"`
}

func NewConfig() Config {
	return Config{}
}

func (c Config) Validate() error {
	out, err := c.Parse()
	if err != nil {
		return err
	}
	if out != nil && out.MinVersion != 0 && out.MaxVersion != 0 && out.MinVersion > out.MaxVersion {
		return fmt.Errorf("min-version %q is greater than max-version %q", c.MinVersion, c.MaxVersion)
	}
	return nil
}

// Parse returns the tls.Config described by c, or nil when c is empty.
func (c Config) Parse() (*tls.Config, error) {
	var out *tls.Config
	get := func() *tls.Config {
		if out == nil {
			out = new(tls.Config)
		}
		return out
	}

	for _, name := range c.Ciphers {
		cipher, ok := ciphersMap[strings.ToUpper(name)]
		if !ok {
			return nil, unknownCipher(name)
		}
		get().CipherSuites = append(get().CipherSuites, cipher)
	}

	if c.MinVersion != "" {
		version, ok := versionsMap[strings.ToUpper(c.MinVersion)]
		if !ok {
			return nil, unknownVersion(c.MinVersion)
		}
		get().MinVersion = version
	}

	if c.MaxVersion != "" {
		version, ok := versionsMap[strings.ToUpper(c.MaxVersion)]
		if !ok {
			return nil, unknownVersion(c.MaxVersion)
		}
		get().MaxVersion = version
	}

	return out, nil
}

var ciphersMap = map[string]uint16{
	"TLS_RSA_WITH_AES_128_CBC_SHA":            tls.TLS_RSA_WITH_AES_128_CBC_SHA,
	"TLS_RSA_WITH_AES_256_CBC_SHA":            tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	"TLS_RSA_WITH_AES_128_GCM_SHA256":         tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_RSA_WITH_AES_256_GCM_SHA384":         tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA":    tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA":    tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA":      tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA":      tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
}

var versionsMap = map[string]uint16{
	"TLS1.0": tls.VersionTLS10,
	"1.0":    tls.VersionTLS10,
	"TLS1.1": tls.VersionTLS11,
	"1.1":    tls.VersionTLS11,
	"TLS1.2": tls.VersionTLS12,
	"1.2":    tls.VersionTLS12,
	"TLS1.3": tls.VersionTLS13,
	"1.3":    tls.VersionTLS13,
}

func unknownCipher(name string) error {
	return fmt.Errorf("unknown cipher suite: %q, available ciphers: %s", name, keys(ciphersMap))
}

func unknownVersion(name string) error {
	return fmt.Errorf("unknown tls version: %q, available versions: %s", name, keys(versionsMap))
}

func keys(m map[string]uint16) string {
	available := make([]string, 0, len(m))
	for k := range m {
		available = append(available, k)
	}
	sort.Strings(available)
	return strings.Join(available, ", ")
}

package tlsconfig

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Parse(t *testing.T) {
	out, err := Config{}.Parse()
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = Config{
		Ciphers:    []string{"tls_ecdhe_rsa_with_aes_128_gcm_sha256"},
		MinVersion: "tls1.2",
		MaxVersion: "1.3",
	}.Parse()
	require.NoError(t, err)
	assert.Equal(t, []uint16{tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256}, out.CipherSuites)
	assert.Equal(t, uint16(tls.VersionTLS12), out.MinVersion)
	assert.Equal(t, uint16(tls.VersionTLS13), out.MaxVersion)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Config
		wantErr string
	}{
		{name: "empty", c: NewConfig()},
		{name: "unknown cipher", c: Config{Ciphers: []string{"TLS_RSA_WITH_RC4_128_SHA"}}, wantErr: "unknown cipher suite"},
		{name: "unknown version", c: Config{MinVersion: "SSL3.0"}, wantErr: "unknown tls version"},
		{name: "inverted", c: Config{MinVersion: "1.3", MaxVersion: "1.2"}, wantErr: "greater than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreate(t *testing.T) {
	out, err := Create("", "", "", true)
	require.NoError(t, err)
	assert.True(t, out.InsecureSkipVerify)

	_, err = Create("", "cert.pem", "", false)
	assert.EqualError(t, err, "must provide both key and cert files: only cert file provided")
	_, err = Create("", "", "key.pem", false)
	assert.EqualError(t, err, "must provide both key and cert files: only key file provided")

	_, err = Create(filepath.Join(t.TempDir(), "missing.pem"), "", "", false)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(empty, []byte("not a cert"), 0600))
	_, err = Create(empty, "", "", false)
	assert.Error(t, err)
}

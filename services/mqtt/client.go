package mqtt

import (
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/kflow/tlsconfig"
	"github.com/pkg/errors"
)

// Client publishes messages to a broker.
// Implementations other than PahoClient exist for tests.
type Client interface {
	Connect() error
	Disconnect()
	Publish(topic string, qos QoSLevel, retained bool, message []byte) error
}

// ClientCreator builds a disconnected client for a configuration.
type ClientCreator func(c Config) (Client, error)

// DefaultQuiesceTimeout is the duration the client will wait for outstanding
// messages to be published before forcing a disconnection
const DefaultQuiesceTimeout = 250 * time.Millisecond

// PahoClient is a Client backed by the paho library.
type PahoClient struct {
	opts    *pahomqtt.ClientOptions
	timeout time.Duration
	client  pahomqtt.Client
}

func NewClient(c Config) (Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.URL)
	opts.SetClientID(c.ClientID)
	opts.SetUsername(c.Username)
	opts.SetPassword(c.Password)
	// Publishing only, so the broker need not keep any session state.
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	timeout := time.Duration(c.Timeout)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts.SetConnectTimeout(timeout)
	opts.SetWriteTimeout(timeout)

	if c.secure() || c.SSLCA != "" || c.SSLCert != "" {
		tlsConfig, err := tlsconfig.Create(c.SSLCA, c.SSLCert, c.SSLKey, c.InsecureSkipVerify)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}
	return &PahoClient{opts: opts, timeout: timeout}, nil
}

func (p *PahoClient) Connect() error {
	p.client = pahomqtt.NewClient(p.opts)
	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return errors.New("timed out connecting to broker")
	}
	return token.Error()
}

func (p *PahoClient) Disconnect() {
	if p.client != nil {
		p.client.Disconnect(uint(DefaultQuiesceTimeout / time.Millisecond))
	}
}

func (p *PahoClient) Publish(topic string, qos QoSLevel, retained bool, message []byte) error {
	if p.client == nil {
		return errors.New("publish called before connect")
	}
	token := p.client.Publish(topic, byte(qos), retained, message)
	if !token.WaitTimeout(p.timeout) {
		return errors.Errorf("timed out publishing to %q", topic)
	}
	return token.Error()
}

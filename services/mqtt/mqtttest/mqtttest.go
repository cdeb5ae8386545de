// Package mqtttest provides an in-memory mqtt.Client.
package mqtttest

import (
	"errors"
	"sync"

	"github.com/influxdata/kflow/services/mqtt"
)

// ClientCreator creates MockClients.
// All configs and clients created are recorded.
type ClientCreator struct {
	mu      sync.Mutex
	Clients []*MockClient
	Configs []mqtt.Config
	// ConnectErr is returned by Connect of every client created.
	ConnectErr error
}

func (s *ClientCreator) NewClient(c mqtt.Config) (mqtt.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cli := &MockClient{connectErr: s.ConnectErr}
	s.Clients = append(s.Clients, cli)
	s.Configs = append(s.Configs, c)
	return cli, nil
}

type MockClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error

	PublishData []PublishData
}

func (m *MockClient) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockClient) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockClient) Publish(topic string, qos mqtt.QoSLevel, retained bool, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errors.New("publish called before connect")
	}
	m.PublishData = append(m.PublishData, PublishData{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Message:  string(message),
	})
	return nil
}

type PublishData struct {
	Topic    string
	QoS      mqtt.QoSLevel
	Retained bool
	Message  string
}

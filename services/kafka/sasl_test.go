package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
)

func TestSASLAuth_Validate(t *testing.T) {
	one, two := 1, 2
	tests := []struct {
		name    string
		auth    SASLAuth
		wantErr bool
	}{
		{
			name:    "Ignore empty SASL mechanism",
			auth:    SASLAuth{SASLMechanism: ""},
			wantErr: false,
		},
		{
			name:    "Invalid SASL mechanism",
			auth:    SASLAuth{SASLMechanism: "mech"},
			wantErr: true,
		},
		{
			name:    "Plain",
			auth:    SASLAuth{SASLMechanism: "PLAIN", SASLUsername: "bob"},
			wantErr: false,
		},
		{
			name:    "SCRAM without username",
			auth:    SASLAuth{SASLMechanism: "SCRAM-SHA-256"},
			wantErr: true,
		},
		{
			name:    "SCRAM",
			auth:    SASLAuth{SASLMechanism: "SCRAM-SHA-256", SASLUsername: "bob", SASLVersion: &one},
			wantErr: false,
		},
		{
			name:    "Invalid version",
			auth:    SASLAuth{SASLUsername: "bob", SASLVersion: &two},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.auth.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSASLVersion(t *testing.T) {
	zero := 0
	tests := []struct {
		name    string
		kafka   sarama.KafkaVersion
		sasl    *int
		want    int16
		wantErr bool
	}{
		{name: "old kafka", kafka: sarama.V0_10_0_0, want: sarama.SASLHandshakeV0},
		{name: "new kafka", kafka: sarama.V2_0_0_0, want: sarama.SASLHandshakeV1},
		{name: "explicit", kafka: sarama.V2_0_0_0, sasl: &zero, want: sarama.SASLHandshakeV0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SASLVersion(tt.kafka, tt.sasl)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SASLVersion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SASLVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSASLAuth_Equals(t *testing.T) {
	one, alsoOne := 1, 1
	a := SASLAuth{SASLUsername: "bob", SASLVersion: &one}
	b := SASLAuth{SASLUsername: "bob", SASLVersion: &alsoOne}
	if !a.Equals(&b) {
		t.Error("expected equal auth")
	}
	b.SASLVersion = nil
	if a.Equals(&b) {
		t.Error("expected different auth")
	}
}

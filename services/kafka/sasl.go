package kafka

import (
	"errors"
	"fmt"

	"github.com/Shopify/sarama"
)

type SASLAuth struct {
	SASLUsername  string `toml:"sasl-username"`
	SASLPassword  string `toml:"sasl-password"`
	SASLMechanism string `toml:"sasl-mechanism"`
	SASLVersion   *int   `toml:"sasl-version"`
}

func (k *SASLAuth) Validate() error {
	switch sarama.SASLMechanism(k.SASLMechanism) {
	case "", sarama.SASLTypePlaintext:
	case sarama.SASLTypeSCRAMSHA256, sarama.SASLTypeSCRAMSHA512:
		if k.SASLUsername == "" {
			return fmt.Errorf("sasl-username is required for %s", k.SASLMechanism)
		}
	default:
		return fmt.Errorf("invalid sasl-mechanism %q", k.SASLMechanism)
	}
	if k.SASLVersion != nil && *k.SASLVersion != 0 && *k.SASLVersion != 1 {
		return errors.New("invalid sasl-version, must be 0 or 1")
	}
	return nil
}

// SetSASLConfig configures SASL for kafka (sarama)
// We mutate instead of returning the appropriate struct, because sarama.NewConfig() already populates certain defaults
// that we do not want to disrupt.
func (k *SASLAuth) SetSASLConfig(config *sarama.Config) error {
	config.Net.SASL.User = k.SASLUsername
	config.Net.SASL.Password = k.SASLPassword

	if k.SASLMechanism != "" {
		config.Net.SASL.Mechanism = sarama.SASLMechanism(k.SASLMechanism)
		switch config.Net.SASL.Mechanism {
		case sarama.SASLTypeSCRAMSHA256:
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
			}
		case sarama.SASLTypeSCRAMSHA512:
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
			}
		}
	}

	if k.SASLUsername != "" || k.SASLMechanism != "" {
		config.Net.SASL.Enable = true

		version, err := SASLVersion(config.Version, k.SASLVersion)
		if err != nil {
			return err
		}
		config.Net.SASL.Version = version
	}
	return nil
}

func (k *SASLAuth) Equals(other *SASLAuth) bool {
	if k.SASLUsername != other.SASLUsername ||
		k.SASLPassword != other.SASLPassword ||
		k.SASLMechanism != other.SASLMechanism {
		return false
	}
	if (k.SASLVersion == nil) != (other.SASLVersion == nil) {
		return false
	}
	return k.SASLVersion == nil || *k.SASLVersion == *other.SASLVersion
}

func SASLVersion(kafkaVersion sarama.KafkaVersion, saslVersion *int) (int16, error) {
	if saslVersion == nil {
		if kafkaVersion.IsAtLeast(sarama.V1_0_0_0) {
			return sarama.SASLHandshakeV1, nil
		}
		return sarama.SASLHandshakeV0, nil
	}

	switch *saslVersion {
	case 0:
		return sarama.SASLHandshakeV0, nil
	case 1:
		return sarama.SASLHandshakeV1, nil
	default:
		return 0, errors.New("invalid SASL version")
	}
}

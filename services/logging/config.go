package logging

import (
	"fmt"
	"strings"
)

type Config struct {
	File     string `toml:"file"`
	Level    string `toml:"level"`
	Encoding string `toml:"encoding"`
}

func NewConfig() Config {
	return Config{
		File:     "STDERR",
		Level:    "INFO",
		Encoding: "logfmt",
	}
}

func (c Config) Validate() error {
	if c.File == "" {
		return fmt.Errorf("must specify a log file, STDERR or STDOUT")
	}
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Encoding) {
	case "logfmt", "json":
	default:
		return fmt.Errorf("unknown log encoding %s", c.Encoding)
	}
	return nil
}

// Package toml holds value types for configuration files.
package toml

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration written as a string, e.g. "10s", in configuration files.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	// Ignore if there is no value set.
	if len(text) == 0 {
		return nil
	}

	// Otherwise parse as a duration formatted string.
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	// Set duration and return.
	*d = Duration(duration)
	return nil
}

// MarshalText converts a duration to a string for encoding toml.
func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.String()), nil
}

// Size is a number of bytes, e.g. "10m" or "1g" in configuration files.
type Size uint64

// UnmarshalText parses a byte size from text.
func (s *Size) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return fmt.Errorf("size was empty")
	}

	// The multiplier defaults to 1 in case the size has
	// no suffix (and is then just raw bytes)
	mult := uint64(1)

	// Preserve the original text for error messages
	sizeText := text

	// Parse unit of measure
	suffix := text[len(sizeText)-1]
	if !isdigit(suffix) {
		switch suffix {
		case 'k', 'K':
			mult = 1 << 10 // KiB
		case 'm', 'M':
			mult = 1 << 20 // MiB
		case 'g', 'G':
			mult = 1 << 30 // GiB
		default:
			return fmt.Errorf("unknown size suffix: %c (expected k, m, or g)", suffix)
		}
		sizeText = sizeText[:len(sizeText)-1]
	}

	// Parse the numeric part of the input
	size, err := strconv.ParseUint(string(sizeText), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size: %s", string(text))
	}
	*s = Size(size * mult)
	return nil
}

// MarshalText writes the size using the largest unit that divides it.
func (s Size) MarshalText() ([]byte, error) {
	switch {
	case s == 0:
		return []byte("0"), nil
	case s%(1<<30) == 0:
		return []byte(strconv.FormatUint(uint64(s>>30), 10) + "g"), nil
	case s%(1<<20) == 0:
		return []byte(strconv.FormatUint(uint64(s>>20), 10) + "m"), nil
	case s%(1<<10) == 0:
		return []byte(strconv.FormatUint(uint64(s>>10), 10) + "k"), nil
	default:
		return []byte(strconv.FormatUint(uint64(s), 10)), nil
	}
}

func isdigit(b byte) bool { return b >= '0' && b <= '9' }

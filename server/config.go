package server

import (
	"encoding"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/services/httpd"
	"github.com/influxdata/kflow/services/kafka"
	"github.com/influxdata/kflow/services/logging"
	"github.com/influxdata/kflow/services/mqtt"
	"github.com/influxdata/kflow/services/storage"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of the environment variables overriding the configuration.
const EnvPrefix = "KFLOW"

// Config represents the configuration format for the kflowd binary.
type Config struct {
	HTTP    httpd.Config   `toml:"http"`
	Storage storage.Config `toml:"storage"`
	Logging logging.Config `toml:"logging"`
	Kafka   kafka.Config   `toml:"kafka"`
	MQTT    mqtt.Config    `toml:"mqtt"`

	// Rule sets stored when the server opens.
	Replacers []RuleSetConfig `toml:"replacer"`
	Labelers  []RuleSetConfig `toml:"labeler"`

	// Vars are substituted for ${NAME} references in rules,
	// falling back to the process environment.
	Vars map[string]string `toml:"vars"`

	Hostname string `toml:"hostname"`
	DataDir  string `toml:"data_dir"`
}

// RuleSetConfig declares a named rule set, either inline, in the encoded
// details form or in a rules file.
type RuleSetConfig struct {
	Name    string `toml:"name"`
	File    string `toml:"file"`
	Details string `toml:"details"`

	Replace      []rules.MatchReplaceRule `toml:"replace"`
	Label        []rules.MatchLabelRule   `toml:"label"`
	LabelOptions rules.LabelOptions       `toml:"label-options"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	c := &Config{
		Hostname: "localhost",
		Vars:     make(map[string]string),
	}

	c.HTTP = httpd.NewConfig()
	c.Storage = storage.NewConfig()
	c.Logging = logging.NewConfig()
	c.Kafka = kafka.NewConfig()
	c.MQTT = mqtt.NewConfig()

	return c
}

// NewDemoConfig returns the config that runs when no config is specified.
func NewDemoConfig() (*Config, error) {
	c := NewConfig()

	var homeDir string
	// By default, store data files in current users home directory
	u, err := user.Current()
	if err == nil {
		homeDir = u.HomeDir
	} else if os.Getenv("HOME") != "" {
		homeDir = os.Getenv("HOME")
	} else {
		return nil, fmt.Errorf("failed to determine current user for storage")
	}

	c.Storage.BoltDBPath = filepath.Join(homeDir, ".kflow", c.Storage.BoltDBPath)
	c.DataDir = filepath.Join(homeDir, ".kflow")

	return c, nil
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("must configure valid hostname")
	}
	if c.DataDir == "" {
		return fmt.Errorf("must configure valid data dir")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.HTTP.Validate(); err != nil {
		return errors.Wrap(err, "http")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}
	if err := c.Kafka.Validate(); err != nil {
		return errors.Wrap(err, "kafka")
	}
	if err := c.MQTT.Validate(); err != nil {
		return errors.Wrap(err, "mqtt")
	}
	// Rule set names are unique across both kinds.
	names := make(map[string]bool, len(c.Replacers)+len(c.Labelers))
	for _, sets := range [][]RuleSetConfig{c.Replacers, c.Labelers} {
		for _, rs := range sets {
			if rs.Name == "" {
				return errors.New("rule sets must have a name")
			}
			if names[rs.Name] {
				return fmt.Errorf("duplicate name %q for rule set configs", rs.Name)
			}
			names[rs.Name] = true
		}
	}
	return nil
}

// RuleSets resolves the configured rule sets.
// Rules files and encoded details are read and appended after any inline rules.
func (c *Config) RuleSets() ([]storage.RuleSet, error) {
	sets := make([]storage.RuleSet, 0, len(c.Replacers)+len(c.Labelers))
	for _, rc := range c.Replacers {
		rs, err := rc.ruleSet(storage.KindReplace)
		if err != nil {
			return nil, errors.Wrapf(err, "replacer %q", rc.Name)
		}
		sets = append(sets, rs)
	}
	for _, rc := range c.Labelers {
		rs, err := rc.ruleSet(storage.KindLabel)
		if err != nil {
			return nil, errors.Wrapf(err, "labeler %q", rc.Name)
		}
		sets = append(sets, rs)
	}
	return sets, nil
}

func (rc RuleSetConfig) ruleSet(kind storage.Kind) (storage.RuleSet, error) {
	rs := storage.RuleSet{
		ID:           rc.Name,
		Kind:         kind,
		Replace:      append([]rules.MatchReplaceRule(nil), rc.Replace...),
		Label:        append([]rules.MatchLabelRule(nil), rc.Label...),
		LabelOptions: rc.LabelOptions,
	}
	if rc.Details != "" {
		switch kind {
		case storage.KindLabel:
			rs2, err := rules.DecodeLabelRules(rc.Details)
			if err != nil {
				return storage.RuleSet{}, err
			}
			rs.Label = append(rs.Label, rs2...)
		default:
			rs2, err := rules.DecodeReplaceRules(rc.Details)
			if err != nil {
				return storage.RuleSet{}, err
			}
			rs.Replace = append(rs.Replace, rs2...)
		}
	}
	if rc.File != "" {
		f, err := rules.LoadFile(rc.File)
		if err != nil {
			return storage.RuleSet{}, err
		}
		switch kind {
		case storage.KindLabel:
			if len(f.Replace) > 0 {
				return storage.RuleSet{}, fmt.Errorf("rules file %q holds replace rules", rc.File)
			}
			rs.Label = append(rs.Label, f.Label...)
			if rs.LabelOptions == (rules.LabelOptions{}) {
				rs.LabelOptions = f.LabelOptions
			}
		default:
			if len(f.Label) > 0 {
				return storage.RuleSet{}, fmt.Errorf("rules file %q holds label rules", rc.File)
			}
			rs.Replace = append(rs.Replace, f.Replace...)
		}
	}
	return rs, nil
}

// Lookup resolves rule variables from Vars, then from the environment.
func (c *Config) Lookup(name string) (string, bool) {
	if v, ok := c.Vars[name]; ok {
		return v, true
	}
	return rules.EnvLookup(name)
}

// ApplyEnvOverrides sets config values from KFLOW_* environment variables.
// Nested sections join their toml names with underscores, e.g. KFLOW_HTTP_BIND_ADDRESS,
// and slice elements are addressed by index, e.g. KFLOW_REPLACER_0_FILE.
func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnvOverrides(EnvPrefix, "", reflect.ValueOf(c))
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func (c *Config) applyEnvOverrides(prefix string, fieldDesc string, spec reflect.Value) error {
	// If we have a pointer, dereference it
	s := spec
	if spec.Kind() == reflect.Ptr {
		if spec.IsNil() {
			return nil
		}
		s = spec.Elem()
	}

	// Maps collect every variable under the prefix.
	if s.Kind() == reflect.Map {
		if s.IsNil() && s.CanSet() {
			s.Set(reflect.MakeMap(s.Type()))
		}
		return applyEnvOverridesToMap(prefix, s)
	}

	var value string

	if s.Kind() != reflect.Struct {
		value = os.Getenv(prefix)
		// Skip any fields we don't have a value to set
		if value == "" {
			return nil
		}

		if fieldDesc != "" {
			fieldDesc = " to " + fieldDesc
		}
	}

	failed := func() error {
		return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
	}

	// Types such as toml.Duration, toml.Size and mqtt.QoSLevel parse themselves.
	if s.Kind() != reflect.Struct && s.CanAddr() && s.Addr().Type().Implements(textUnmarshalerType) {
		if err := s.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value)); err != nil {
			return failed()
		}
		return nil
	}

	switch s.Kind() {
	case reflect.String:
		s.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 0, s.Type().Bits())
		if err != nil {
			return failed()
		}
		s.SetInt(intValue)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintValue, err := strconv.ParseUint(value, 0, s.Type().Bits())
		if err != nil {
			return failed()
		}
		s.SetUint(uintValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return failed()
		}
		s.SetBool(boolValue)
	case reflect.Float32, reflect.Float64:
		floatValue, err := strconv.ParseFloat(value, s.Type().Bits())
		if err != nil {
			return failed()
		}
		s.SetFloat(floatValue)
	case reflect.Slice:
		// Only string slices can be set from a single variable, e.g. KFLOW_KAFKA_BROKERS=a:9092,b:9092
		if s.Type().Elem().Kind() != reflect.String {
			return failed()
		}
		parts := strings.Split(value, ",")
		vs := reflect.MakeSlice(s.Type(), len(parts), len(parts))
		for i, p := range parts {
			vs.Index(i).SetString(strings.TrimSpace(p))
		}
		s.Set(vs)
	case reflect.Struct:
		if err := c.applyEnvOverridesToStruct(prefix, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnvOverridesToStruct(prefix string, s reflect.Value) error {
	typeOfSpec := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		field := typeOfSpec.Field(i)
		// Embedded structs share the prefix of their parent.
		if field.Anonymous && f.Kind() == reflect.Struct {
			if err := c.applyEnvOverridesToStruct(prefix, f); err != nil {
				return err
			}
			continue
		}
		// Get the toml tag to determine what env var name to use
		configName := field.Tag.Get("toml")
		if configName == "" || configName == "-" || !f.CanSet() {
			continue
		}
		// Replace hyphens with underscores to avoid issues with shells
		configName = strings.Replace(configName, "-", "_", -1)

		// Use the upper-case prefix and toml name for the env var
		key := strings.ToUpper(configName)
		if prefix != "" {
			key = strings.ToUpper(fmt.Sprintf("%s_%s", prefix, configName))
		}

		// Slices of structs apply to each element using the index as a suffix
		// e.g. KFLOW_REPLACER_0_NAME
		if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.Struct {
			for i := 0; i < f.Len(); i++ {
				if err := c.applyEnvOverrides(fmt.Sprintf("%s_%d", key, i), field.Name, f.Index(i)); err != nil {
					return err
				}
			}
		} else if err := c.applyEnvOverrides(key, field.Name, f); err != nil {
			return err
		}
	}
	return nil
}

// applyEnvOverridesToMap sets an entry of m for every variable named PREFIX_KEY.
func applyEnvOverridesToMap(prefix string, m reflect.Value) error {
	if m.IsNil() {
		return errors.New("cannot apply env to nil map")
	}
	if m.Type().Key().Kind() != reflect.String || m.Type().Elem().Kind() != reflect.String {
		return errors.New("map is not a map[string]string")
	}
	p := prefix + "_"
	for _, env := range os.Environ() {
		key := parseEnvKey(env)
		if !strings.HasPrefix(key, p) || len(key) == len(p) {
			continue
		}
		m.SetMapIndex(reflect.ValueOf(key[len(p):]), reflect.ValueOf(os.Getenv(key)))
	}
	return nil
}

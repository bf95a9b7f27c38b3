// Package config resolves how to reach the appliance and how the daemon runs.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	EnvEncoded  = "DNAC_CONFIG"
	EnvBaseURL  = "DNA_CENTER_BASE_URL"
	EnvUsername = "DNA_CENTER_USERNAME"
	EnvPassword = "DNA_CENTER_PASSWORD"
	EnvVerify   = "DNA_CENTER_VERIFY"

	// FileName is the config file looked up in the home directory, without extension.
	FileName = ".dnac-backup"

	defaultTopic = "dnac-backup/events"
)

// Source says where the appliance settings came from.
type Source string

const (
	SourceEncodedEnv Source = EnvEncoded
	SourceEnv        Source = "environment"
	SourceFile       Source = "file"
	SourceLegacyFile Source = "legacy file"
)

var (
	// ErrNotConfigured is returned when no source names an appliance.
	ErrNotConfigured = errors.New("can't find Cisco DNA Center config")
	ErrConfigExists  = errors.New("config file already exists")
	ErrDecode        = errors.New("can't decode config")
)

// Appliance is how to reach and log in to the appliance.
type Appliance struct {
	Hostname string `yaml:"hostname" json:"hostname"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Verify   bool   `yaml:"secure" json:"secure"`
}

func (a Appliance) Validate() error {
	var missing []string
	if a.Hostname == "" {
		missing = append(missing, "hostname")
	}
	if a.Username == "" {
		missing = append(missing, "username")
	}
	if a.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Schedule is the job the daemon runs.
type Schedule struct {
	Job          string `yaml:"job"`
	Interval     string `yaml:"interval"`
	Day          string `yaml:"day"`
	Time         string `yaml:"time"`
	Keep         string `yaml:"keep"`
	Incompatible bool   `yaml:"incompatible"`
}

// Notify configures job event publishing. An empty BrokerURL disables it.
type Notify struct {
	BrokerURL string `yaml:"broker_url"`
	Topic     string `yaml:"topic"`
}

type Config struct {
	DNAC      Appliance `yaml:"dnac"`
	Schedule  Schedule  `yaml:"schedule"`
	Notify    Notify    `yaml:"notify"`
	RateLimit float64   `yaml:"rate_limit,omitempty"`
	// StatusAddr is where the daemon serves its status, if set.
	StatusAddr string `yaml:"status_addr,omitempty"`

	Source Source `yaml:"-"`
	// File is the file the settings were read from, if any.
	File string `yaml:"-"`
}

// Loader merges the environment, the viper config file and the legacy JSON
// file. The environment wins over files.
type Loader struct {
	v *viper.Viper
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	// LegacyPath is the JSON file read when nothing else names an appliance.
	LegacyPath string
}

// NewLoader returns a Loader reading v with the daemon defaults set.
func NewLoader(v *viper.Viper) *Loader {
	SetDefaults(v)
	legacy := ""
	if home, err := homedir.Dir(); err == nil {
		legacy = filepath.Join(home, ".ciscodnac", "config.json")
	}
	return &Loader{v: v, LookupEnv: os.LookupEnv, LegacyPath: legacy}
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("schedule.job", "purge")
	v.SetDefault("schedule.interval", "daily")
	v.SetDefault("schedule.day", "monday")
	v.SetDefault("schedule.time", "23:00")
	v.SetDefault("schedule.keep", "3")
	v.SetDefault("schedule.incompatible", false)
	v.SetDefault("notify.topic", defaultTopic)
	v.SetDefault("rate_limit", 5.0)
}

// DefaultPath is $HOME/.dnac-backup.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, FileName+".yaml"), nil
}

// Load resolves the full configuration. Appliance settings come from the
// first of DNAC_CONFIG, the DNA_CENTER_* variables, the config file and the
// legacy file that has any; the rest always comes from viper.
func (l *Loader) Load() (*Config, error) {
	cfg := &Config{
		Schedule: Schedule{
			Job:          l.v.GetString("schedule.job"),
			Interval:     l.v.GetString("schedule.interval"),
			Day:          l.v.GetString("schedule.day"),
			Time:         l.v.GetString("schedule.time"),
			Keep:         l.v.GetString("schedule.keep"),
			Incompatible: l.v.GetBool("schedule.incompatible"),
		},
		Notify: Notify{
			BrokerURL: l.v.GetString("notify.broker_url"),
			Topic:     l.v.GetString("notify.topic"),
		},
		RateLimit:  l.v.GetFloat64("rate_limit"),
		StatusAddr: l.v.GetString("status_addr"),
	}

	a, src, err := l.appliance()
	if err != nil {
		return nil, err
	}
	cfg.DNAC = a
	cfg.Source = src
	switch src {
	case SourceFile:
		cfg.File = l.v.ConfigFileUsed()
	case SourceLegacyFile:
		cfg.File = l.LegacyPath
	}
	if err := cfg.DNAC.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) appliance() (Appliance, Source, error) {
	if s, ok := l.LookupEnv(EnvEncoded); ok {
		a, err := Decode(s)
		return a, SourceEncodedEnv, err
	}

	host, okHost := l.LookupEnv(EnvBaseURL)
	user, okUser := l.LookupEnv(EnvUsername)
	pass, okPass := l.LookupEnv(EnvPassword)
	if okHost && okUser && okPass {
		verify, _ := l.LookupEnv(EnvVerify)
		return Appliance{
			Hostname: host,
			Username: user,
			Password: pass,
			Verify:   strings.Contains(strings.ToLower(verify), "true"),
		}, SourceEnv, nil
	}

	if l.v.IsSet("dnac.hostname") {
		return Appliance{
			Hostname: l.v.GetString("dnac.hostname"),
			Username: l.v.GetString("dnac.username"),
			Password: l.v.GetString("dnac.password"),
			Verify:   l.v.GetBool("dnac.secure"),
		}, SourceFile, nil
	}

	if l.LegacyPath != "" {
		data, err := os.ReadFile(l.LegacyPath)
		if err == nil {
			a, err := decodeFile(data)
			return a, SourceLegacyFile, err
		}
		if !errors.Is(err, os.ErrNotExist) {
			return Appliance{}, SourceLegacyFile, err
		}
	}
	return Appliance{}, "", ErrNotConfigured
}

type document struct {
	DNAC Appliance `json:"dnac"`
}

// Encode renders a as the base64 form accepted in DNAC_CONFIG.
func Encode(a Appliance) (string, error) {
	data, err := json.MarshalIndent(document{DNAC: a}, "", "    ")
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses the base64 form produced by Encode.
func Decode(s string) (Appliance, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Appliance{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Appliance{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return doc.DNAC, nil
}

// decodeFile accepts the legacy file either base64 encoded or as plain JSON.
func decodeFile(data []byte) (Appliance, error) {
	if a, err := Decode(string(data)); err == nil {
		return a, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Appliance{}, fmt.Errorf("%w: can't load json from config: %v", ErrDecode, err)
	}
	return doc.DNAC, nil
}

// Write saves cfg as YAML at path. An existing file is only replaced when
// overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnvExports returns shell export lines for a, either one variable per
// setting or a single encoded DNAC_CONFIG.
func EnvExports(a Appliance, encode bool) ([]string, error) {
	if encode {
		s, err := Encode(a)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("export %s=%s", EnvEncoded, s)}, nil
	}
	return []string{
		fmt.Sprintf("export %s=%s", EnvBaseURL, a.Hostname),
		fmt.Sprintf("export %s=%s", EnvUsername, a.Username),
		fmt.Sprintf("export %s=%s", EnvPassword, a.Password),
		fmt.Sprintf("export %s=%s", EnvVerify, strconv.FormatBool(a.Verify)),
	}, nil
}

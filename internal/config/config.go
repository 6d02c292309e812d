package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/EgorLis/rwsclient/internal/rws"
)

type Config struct {
	Controller   Controller   `yaml:"controller" json:"controller"`
	Subscription Subscription `yaml:"subscription" json:"subscription"`
	Overview     Overview     `yaml:"overview" json:"overview"`
	Log          Log          `yaml:"log" json:"log"`
}

type Controller struct {
	URL            string   `yaml:"url" json:"url"`
	Username       string   `yaml:"username" json:"username"`
	Password       string   `yaml:"password" json:"password"` // "-" — спросить в терминале
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`

	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file" json:"ca_file"`
}

type Subscription struct {
	Resources   []rws.Resource `yaml:"resources" json:"resources"`
	AutoStart   bool           `yaml:"auto_start" json:"auto_start"`
	StartGrace  Duration       `yaml:"start_grace" json:"start_grace"`
	RetryDelay  Duration       `yaml:"retry_delay" json:"retry_delay"`
	StopTimeout Duration       `yaml:"stop_timeout" json:"stop_timeout"`
}

// Overview — что читать в обзоре после входа.
type Overview struct {
	Signal   string `yaml:"signal" json:"signal"`
	Task     string `yaml:"task" json:"task"`
	Module   string `yaml:"module" json:"module"`
	Variable string `yaml:"variable" json:"variable"`
	Files    string `yaml:"files" json:"files"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`   // debug|info|warn|error
	Format string `yaml:"format" json:"format"` // text|json
}

func Default() *Config {
	return &Config{
		Controller: Controller{
			URL:            "http://127.0.0.1",
			Username:       rws.DefaultUsername,
			Password:       rws.DefaultPassword,
			RequestTimeout: Duration(rws.DefaultRequestTimeout),
		},
		Subscription: Subscription{
			Resources: []rws.Resource{
				{Path: "/rw/iosystem/signals/DO1;state", Priority: rws.PriorityMedium},
				{Path: "/rw/iosystem/signals/DI1;state", Priority: rws.PriorityMedium},
			},
			AutoStart:   true,
			StartGrace:  Duration(500 * time.Millisecond),
			RetryDelay:  Duration(time.Second),
			StopTimeout: Duration(3 * time.Second),
		},
		Overview: Overview{
			Signal:   "DI1",
			Task:     rws.DefaultTask,
			Module:   "MainModule",
			Variable: "nCounter",
			Files:    "$home",
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load читает YAML (.yaml, .yml) или JSON с комментариями (.json, .jsonc)
// поверх значений по умолчанию. Пустой path — только умолчания.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		return nil, fmt.Errorf("config: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Controller.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("controller.url: want http(s)://host, got %q", c.Controller.URL))
	}
	if c.Controller.Username == "" {
		errs = append(errs, errors.New("controller.username is empty"))
	}

	for name, d := range map[string]Duration{
		"controller.request_timeout": c.Controller.RequestTimeout,
		"subscription.start_grace":   c.Subscription.StartGrace,
		"subscription.retry_delay":   c.Subscription.RetryDelay,
		"subscription.stop_timeout":  c.Subscription.StopTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	seen := make(map[string]bool)
	for i, r := range c.Subscription.Resources {
		switch {
		case r.Path == "":
			errs = append(errs, fmt.Errorf("subscription.resources[%d]: empty path", i))
		case seen[r.Path]:
			errs = append(errs, fmt.Errorf("subscription.resources[%d]: duplicate %q", i, r.Path))
		}
		seen[r.Path] = true

		switch r.Priority {
		case "", rws.PriorityLow, rws.PriorityMedium, rws.PriorityHigh:
		default:
			errs = append(errs, fmt.Errorf("subscription.resources[%d]: bad priority %q", i, r.Priority))
		}
	}
	if c.Subscription.AutoStart && len(c.Subscription.Resources) == 0 {
		errs = append(errs, errors.New("subscription.auto_start needs at least one resource"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// ClientConfig — настройки для rws.New.
func (c Controller) ClientConfig() rws.Config {
	return rws.Config{
		BaseURL:            c.URL,
		Username:           c.Username,
		Password:           c.Password,
		RequestTimeout:     c.RequestTimeout.Std(),
		InsecureSkipVerify: c.InsecureSkipVerify,
		CAFile:             c.CAFile,
	}
}

func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

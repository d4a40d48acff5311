package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/db"
)

const (
	DefaultListenAddr      = ":8090"
	DefaultPageSize        = 200
	MinPageSize            = 50
	MaxPageSize            = 2000
	PageSizeStep           = 50
	DefaultRefreshInterval = 15 * time.Second
	MinRefreshInterval     = 5 * time.Second
	MaxRefreshInterval     = 60 * time.Second
	DefaultSSHKeepAlive    = 10 * time.Second
	DefaultSessionIdle     = 30 * time.Minute
	DefaultCycleRate       = time.Second

	EnvDSN         = "NODEVERIFY_DSN"
	EnvSSHPassword = "NODEVERIFY_SSH_PASSWORD"
)

var (
	errMissingDSN       = errors.New("database dsn is required")
	errInvalidPageSize  = errors.New("page size must be a multiple of 50 within [50, 2000]")
	errInvalidInterval  = errors.New("refresh interval must be within [5s, 60s]")
	errInvalidWindow    = errors.New("recency window must be positive")
	errInvalidIdle      = errors.New("session idle timeout must be positive")
	errMissingSSHTarget = errors.New("ssh tunnel requires host, user and remote_addr")
	errMissingSSHAuth   = errors.New("ssh tunnel requires a key_file or password")
)

// Duration accepts either a Go duration string ("3h") or nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))

		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DatabaseConfig selects the store. Driver is sqlite, postgres or mysql.
type DatabaseConfig struct {
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	Schema       string `json:"schema,omitempty"`
	MaxOpenConns int    `json:"max_open_conns,omitempty"`
}

// TunnelConfig describes an SSH jump host in front of the store. When set, the
// DSN must point at LocalAddr.
type TunnelConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port,omitempty"`
	User           string   `json:"user"`
	KeyFile        string   `json:"key_file,omitempty"`
	Password       string   `json:"password,omitempty"`
	KnownHostsFile string   `json:"known_hosts_file,omitempty"`
	RemoteAddr     string   `json:"remote_addr"`
	LocalAddr      string   `json:"local_addr,omitempty"`
	// KeepAlive defaults to 10s; a negative value disables keepalives.
	KeepAlive Duration `json:"keep_alive,omitempty"`
}

// Config is the nodeverify configuration file.
type Config struct {
	ListenAddr      string          `json:"listen_addr"`
	Database        DatabaseConfig  `json:"database"`
	SSH             *TunnelConfig   `json:"ssh,omitempty"`
	RecencyWindow   Duration        `json:"recency_window"`
	PageSize        int             `json:"page_size"`
	RefreshInterval Duration        `json:"refresh_interval"`
	LogMode         string          `json:"log_mode"`
	Metrics         MetricsSettings `json:"metrics"`
	WebDir          string          `json:"web_dir,omitempty"`
	Sessions        SessionSettings `json:"sessions"`
}

// SessionSettings bounds the API's in-memory operator sessions.
type SessionSettings struct {
	// IdleTimeout drops sessions unused for this long.
	IdleTimeout Duration `json:"idle_timeout,omitempty"`
	// CycleRate is the minimum gap between baseline or refresh requests of
	// one session. A negative value disables the limit.
	CycleRate Duration `json:"cycle_rate,omitempty"`
}

// MetricsSettings toggles the prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// ApplyDefaults fills unset fields and overlays secrets from the environment.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}

	if c.RefreshInterval == 0 {
		c.RefreshInterval = Duration(DefaultRefreshInterval)
	}

	if c.RecencyWindow == 0 {
		c.RecencyWindow = Duration(db.DefaultRecencyWindow)
	}

	if c.Sessions.IdleTimeout == 0 {
		c.Sessions.IdleTimeout = Duration(DefaultSessionIdle)
	}

	if c.Sessions.CycleRate == 0 {
		c.Sessions.CycleRate = Duration(DefaultCycleRate)
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if dsn := os.Getenv(EnvDSN); dsn != "" {
		c.Database.DSN = dsn
	}

	if c.SSH != nil {
		if pw := os.Getenv(EnvSSHPassword); pw != "" {
			c.SSH.Password = pw
		}

		if c.SSH.Port == 0 {
			c.SSH.Port = 22
		}

		if c.SSH.LocalAddr == "" {
			c.SSH.LocalAddr = "127.0.0.1:0"
		}

		if c.SSH.KeepAlive == 0 {
			c.SSH.KeepAlive = Duration(DefaultSSHKeepAlive)
		}
	}
}

// Validate implements Validator.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errMissingDSN
	}

	if err := ValidatePageSize(c.PageSize); err != nil {
		return err
	}

	interval := time.Duration(c.RefreshInterval)
	if interval < MinRefreshInterval || interval > MaxRefreshInterval {
		return fmt.Errorf("%w: %s", errInvalidInterval, interval)
	}

	if c.RecencyWindow <= 0 {
		return errInvalidWindow
	}

	if c.Sessions.IdleTimeout <= 0 {
		return errInvalidIdle
	}

	if c.SSH != nil {
		if c.SSH.Host == "" || c.SSH.User == "" || c.SSH.RemoteAddr == "" {
			return errMissingSSHTarget
		}

		if c.SSH.KeyFile == "" && c.SSH.Password == "" {
			return errMissingSSHAuth
		}
	}

	return nil
}

// ValidatePageSize checks the operator-facing page size range. The store layer
// accepts any positive limit; this range is a presentation constraint.
func ValidatePageSize(size int) error {
	if size < MinPageSize || size > MaxPageSize || size%PageSizeStep != 0 {
		return fmt.Errorf("%w: %d", errInvalidPageSize, size)
	}

	return nil
}

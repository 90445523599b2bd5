package conf

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

type Log struct {
	Enable     bool   `json:"enable" env:"LOG_ENABLE"`
	Name       string `json:"name" env:"LOG_NAME"`
	MaxSize    int    `json:"max_size" env:"LOG_MAX_SIZE"`
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `json:"max_age" env:"LOG_MAX_AGE"`
	Compress   bool   `json:"compress" env:"LOG_COMPRESS"`
}

type Store struct {
	Driver string `json:"driver" env:"STORE_DRIVER"`
	// Addition is handed to the driver as its JSON settings.
	Addition string `json:"addition" env:"STORE_ADDITION"`
}

type Presence struct {
	HeartbeatInterval time.Duration `json:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	LiveWindow        time.Duration `json:"live_window" env:"LIVE_WINDOW"`
	DirectoryTick     time.Duration `json:"directory_tick" env:"DIRECTORY_TICK"`
	FailureThreshold  int           `json:"failure_threshold" env:"HEARTBEAT_FAILURE_THRESHOLD"`
	TokenScope        string        `json:"token_scope" env:"TOKEN_SCOPE"`
}

type Security struct {
	JwtSecret          string        `json:"jwt_secret" env:"JWT_SECRET"`
	TokenExpiresIn     time.Duration `json:"token_expires_in" env:"TOKEN_EXPIRES_IN"`
	SignalFreshness    time.Duration `json:"signal_freshness" env:"SIGNAL_FRESHNESS"`
	BlockCheckInterval time.Duration `json:"block_check_interval" env:"BLOCK_CHECK_INTERVAL"`
	MinPasswordLength  int           `json:"min_password_length" env:"MIN_PASSWORD_LENGTH"`
}

type Command struct {
	PhonePattern       string        `json:"phone_pattern" env:"PHONE_PATTERN"`
	Timeout            time.Duration `json:"timeout" env:"COMMAND_TIMEOUT"`
	OnlineCheckTimeout time.Duration `json:"online_check_timeout" env:"ONLINE_CHECK_TIMEOUT"`
	AgentPollInterval  time.Duration `json:"agent_poll_interval" env:"AGENT_POLL_INTERVAL"`
}

type Scheme struct {
	Address  string `json:"address" env:"ADDR"`
	HttpPort int    `json:"http_port" env:"HTTP_PORT"`
}

type Config struct {
	// Force keeps the config file authoritative over the environment.
	Force    bool     `json:"force" env:"FORCE"`
	Scheme   Scheme   `json:"scheme"`
	Store    Store    `json:"store"`
	Presence Presence `json:"presence"`
	Security Security `json:"security"`
	Command  Command  `json:"command"`
	Log      Log      `json:"log"`

	// Profile is the sqlite file, or the DSN for the other drivers, of
	// the profile's local storage.
	Profile       string `json:"profile" env:"PROFILE"`
	ProfileDriver string `json:"profile_driver" env:"PROFILE_DRIVER"`
}

func DefaultConfig(dataDir string) *Config {
	return &Config{
		Scheme: Scheme{
			Address:  "0.0.0.0",
			HttpPort: 5300,
		},
		Store: Store{
			Driver:   "Memory",
			Addition: "{}",
		},
		Presence: Presence{
			HeartbeatInterval: time.Second,
			LiveWindow:        3 * time.Second,
			DirectoryTick:     500 * time.Millisecond,
			FailureThreshold:  5,
			TokenScope:        ScopeProfile,
		},
		Security: Security{
			TokenExpiresIn:     48 * time.Hour,
			SignalFreshness:    5 * time.Minute,
			BlockCheckInterval: 30 * time.Second,
			MinPasswordLength:  6,
		},
		Command: Command{
			PhonePattern:       `^[0-9]{10}$`,
			Timeout:            30 * time.Second,
			OnlineCheckTimeout: 7 * time.Second,
			AgentPollInterval:  time.Second,
		},
		Profile:       filepath.Join(dataDir, "profile.db"),
		ProfileDriver: "sqlite3",
		Log: Log{
			Enable:     true,
			Name:       filepath.Join(dataDir, "log/log.log"),
			MaxSize:    50,
			MaxBackups: 30,
			MaxAge:     28,
		},
	}
}

// Validate rejects settings under which live sessions could flap.
func (c *Config) Validate() error {
	p := c.Presence
	if p.HeartbeatInterval <= 0 || p.LiveWindow <= 0 || p.DirectoryTick <= 0 {
		return errors.New("presence durations must be positive")
	}
	if p.LiveWindow < 3*p.HeartbeatInterval {
		return errors.Errorf("live window %s must be at least 3x the heartbeat interval %s",
			p.LiveWindow, p.HeartbeatInterval)
	}
	if p.FailureThreshold <= 0 {
		return errors.New("heartbeat failure threshold must be positive")
	}
	if p.TokenScope != ScopeProfile && p.TokenScope != ScopeTab {
		return errors.Errorf("unknown token scope %q", p.TokenScope)
	}
	s := c.Security
	if s.SignalFreshness <= 0 || s.BlockCheckInterval <= 0 {
		return errors.New("security durations must be positive")
	}
	if s.MinPasswordLength < 1 {
		return errors.New("min password length must be positive")
	}
	if c.Command.Timeout <= 0 || c.Command.OnlineCheckTimeout <= 0 {
		return errors.New("command timeouts must be positive")
	}
	switch c.ProfileDriver {
	case "sqlite3", "mysql", "postgres":
	default:
		return errors.Errorf("unknown profile driver %q", c.ProfileDriver)
	}
	if c.Store.Driver == "" {
		return errors.New("store driver is required")
	}
	return nil
}

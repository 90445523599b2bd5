package bootstrap

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v9"
	"github.com/pkg/errors"

	"github.com/smsdesk-org/smsdesk/cmd/flags"
	"github.com/smsdesk-org/smsdesk/internal/conf"
	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

// LoadConfig reads <dataDir>/config.json, creating it with defaults when it
// is missing, then applies environment overrides.
func LoadConfig(dataDir string, noPrefix bool) (*conf.Config, error) {
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.MkdirAll(dataDir, 0o777); err != nil {
		return nil, errors.Wrap(err, "failed create data dir")
	}
	configPath := filepath.Join(dataDir, "config.json")
	cfg := conf.DefaultConfig(dataDir)
	if b, err := os.ReadFile(configPath); err == nil {
		if err := utils.Json.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed load config file %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.WithStack(err)
	}
	if cfg.Security.JwtSecret == "" {
		cfg.Security.JwtSecret = utils.NewUserID()
	}
	// write back so new fields show up in old files
	b, err := utils.Json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.WriteFile(configPath, b, 0o666); err != nil {
		return nil, errors.Wrapf(err, "failed write config file %s", configPath)
	}
	if !cfg.Force {
		prefix := "SMSDESK_"
		if noPrefix {
			prefix = ""
		}
		if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
			return nil, errors.Wrap(err, "failed load config from env")
		}
	}
	if !filepath.IsAbs(cfg.Log.Name) {
		cfg.Log.Name = filepath.Join(dataDir, cfg.Log.Name)
	}
	if cfg.ProfileDriver == "sqlite3" && cfg.Profile != "" && !filepath.IsAbs(cfg.Profile) {
		cfg.Profile = filepath.Join(dataDir, cfg.Profile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}
	return cfg, nil
}

func InitConfig() {
	cfg, err := LoadConfig(flags.DataDir, flags.NoPrefix)
	if err != nil {
		utils.Log.Fatalf("%+v", err)
	}
	conf.Conf = cfg
	utils.Log.Debugf("config: %+v", conf.Conf)
}

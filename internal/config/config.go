package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		OwnerID          int64    `env:"OWNER_ID"`
		EnabledHandlers  []string `env:"HANDLERS,default=antispam,admin"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.groupwarden"`
		MetricsAddr      string   `env:"METRICS_ADDR,default=:2112"`
		Antispam         Antispam
	}

	Antispam struct {
		SettingsTTL      time.Duration `env:"ANTISPAM_SETTINGS_TTL,default=168h"`
		SettingsCacheTTL time.Duration `env:"ANTISPAM_SETTINGS_CACHE_TTL,default=1h"`
		NotifyDedupTTL   time.Duration `env:"ANTISPAM_NOTIFY_DEDUP_TTL,default=1m"`
		DNSBLZone        string        `env:"ANTISPAM_DNSBL_ZONE,default=zen.spamhaus.org"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GW_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

package bootstrap

import (
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gusto/internal/pkg/logger"
)

// Config 是服务的全量配置，按 App / Infra 两段组织。
type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Port     int    `yaml:"port"`
		LogLevel string `yaml:"log_level"`
		// Ledger 选择核销账本实现：redis | mysql | memory
		Ledger             string `yaml:"ledger"`
		GraceWindowMinutes int    `yaml:"grace_window_minutes"`
		CommitRetries      int    `yaml:"commit_retries"`
		CommitBackoffMS    int    `yaml:"commit_backoff_ms"`
	} `yaml:"app"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		MySQL struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
		} `yaml:"mysql"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
		Zookeeper struct {
			Addrs []string `yaml:"addrs"`
		} `yaml:"zookeeper"`
		Nacos struct {
			Enabled     bool   `yaml:"enabled"`
			ServerAddrs string `yaml:"server_addrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`
}

var currentConfig atomic.Pointer[Config]

// Init 加载配置文件并初始化日志。配置路径默认 config.yaml，
// 可用 CONFIG_PATH 环境变量覆盖。
func Init() error {
	path := getEnv("CONFIG_PATH", "config.yaml")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	currentConfig.Store(cfg)
	logger.Init(cfg.App.Name, cfg.App.LogLevel)
	logger.L().Info().Str("config", path).Msg("configuration loaded")
	return nil
}

// GetCurrentConfig 返回当前配置快照。必须先调用 Init。
func GetCurrentConfig() *Config {
	cfg := currentConfig.Load()
	if cfg == nil {
		panic("bootstrap: GetCurrentConfig called before Init")
	}
	return cfg
}

func loadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "promotion-engine"
	cfg.App.Port = 8087
	cfg.App.LogLevel = "info"
	cfg.App.Ledger = "memory"
	cfg.App.GraceWindowMinutes = 30
	cfg.App.CommitRetries = 3
	cfg.App.CommitBackoffMS = 50
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

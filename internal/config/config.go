package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"plantbot/internal/models"
)

// Config конфигурация сервиса
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Sensor struct {
		URL          string        `mapstructure:"url"`
		Timeout      time.Duration `mapstructure:"timeout"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"sensor"`
	Summary struct {
		Hour   int `mapstructure:"hour"`
		Minute int `mapstructure:"minute"`
	} `mapstructure:"summary"`
	Timezone string `mapstructure:"timezone"`
	Line     struct {
		AccessToken string        `mapstructure:"access_token"`
		APIBase     string        `mapstructure:"api_base"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"line"`
	Alerts []models.AlertRule `mapstructure:"alerts"`
}

// Load читает config.yaml из path, поверх накладывает environment.
// Отсутствие файла не фатально: остаются дефолты и env.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("PLANTBOT")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Location загружает опорную таймзону конфигурации
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("sensor.timeout", "10s")
	v.SetDefault("sensor.poll_interval", "60s")
	v.SetDefault("summary.hour", 18)
	v.SetDefault("summary.minute", 0)
	v.SetDefault("timezone", "Asia/Bangkok")
	v.SetDefault("line.api_base", "https://api.line.me")
	v.SetDefault("line.timeout", "10s")
}

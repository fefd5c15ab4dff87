package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Sync      Sync      `yaml:"sync"`
	Platforms Platforms `yaml:"platforms"`
}

type Server struct {
	ListenAddr    string `yaml:"listenAddr"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Sync struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
	Concurrency     int `yaml:"concurrency"`
}

type Platforms struct {
	TwitterBaseURL   string `yaml:"twitterBaseURL"`
	InstagramBaseURL string `yaml:"instagramBaseURL"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = ":8000"
	}
	if config.Sync.Concurrency <= 0 {
		config.Sync.Concurrency = 4
	}
	if config.Sync.IntervalMinutes <= 0 {
		config.Sync.IntervalMinutes = 15
	}

	return config, nil
}

package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// TEST_COLOURS enables colorized scenario output for readability.
	Colours bool `envconfig:"TEST_COLOURS" default:"true"`
	// TEST_WAIT_TIMEOUT bounds every wait on an expected websocket event.
	WaitTimeout time.Duration `envconfig:"TEST_WAIT_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

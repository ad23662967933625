// Package config loads the host configuration: token parameters, the
// privileged account and the wiring of the optional event subscribers.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sheikh-saqib/token-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/token-ledger/internal/ledger"
	"github.com/sheikh-saqib/token-ledger/internal/logging"
	"github.com/sheikh-saqib/token-ledger/internal/units"
)

// Default configuration values.
const (
	DefaultDecimals   = 18
	DefaultHTTPAddr   = ":8080"
	DefaultLogEnv     = string(logging.EnvironmentProduction)
	DefaultLogLevel   = "info"
	DefaultKafkaTopic = kafka.DefaultTopic
)

// TokenConfig holds the ledger construction parameters.
type TokenConfig struct {
	Name               string `koanf:"name"`
	Symbol             string `koanf:"symbol"`
	Decimals           uint8  `koanf:"decimals"`
	InitialSupply      string `koanf:"initial_supply"` // raw base-10 integer
	ScaleInitialSupply bool   `koanf:"scale_initial_supply"`
	Owner              string `koanf:"owner"` // hex address of the privileged account
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Env   string `koanf:"env"`
	Level string `koanf:"level"`
}

// KafkaConfig enables the Kafka publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// PostgresConfig enables the audit journal when DSN is non-empty.
type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

// Config is the full host configuration.
type Config struct {
	Token    TokenConfig    `koanf:"token"`
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Postgres PostgresConfig `koanf:"postgres"`
}

// Validate checks the token section; the subscriber sections are optional.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Token.Owner) == "" {
		errs = append(errs, errors.New("token.owner is required"))
	} else if !common.IsHexAddress(c.Token.Owner) {
		errs = append(errs, fmt.Errorf("token.owner %q is not a hex address", c.Token.Owner))
	}
	if c.Token.InitialSupply != "" {
		if _, err := units.Parse(c.Token.InitialSupply); err != nil {
			errs = append(errs, fmt.Errorf("token.initial_supply: %w", err))
		}
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	return errors.Join(errs...)
}

// LedgerConfig converts the token section into ledger construction
// parameters. Call Validate first.
func (c *Config) LedgerConfig() (ledger.Config, error) {
	cfg := ledger.Config{
		Name:               c.Token.Name,
		Symbol:             c.Token.Symbol,
		Decimals:           c.Token.Decimals,
		ScaleInitialSupply: c.Token.ScaleInitialSupply,
		Owner:              common.HexToAddress(c.Token.Owner),
	}
	if c.Token.InitialSupply != "" {
		supply, err := units.Parse(c.Token.InitialSupply)
		if err != nil {
			return ledger.Config{}, fmt.Errorf("token.initial_supply: %w", err)
		}
		cfg.InitialSupply = supply
	}
	return cfg, nil
}

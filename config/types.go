package config

import (
	"strings"

	"marginledger/crypto"
)

const (
	// DefaultMaxApy is the interest cap in percent per year.
	DefaultMaxApy = 20
	// DefaultMaxLeverage is expressed in hundredths: 500 is 5x.
	DefaultMaxLeverage = 500

	DefaultQueryRequestsPerMinute = 600
	DefaultQueryBurst             = 20
)

// Logging selects the log level and optional rotated log file.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio"`
}

// QueryLimits throttles the read-only HTTP views per client address.
type QueryLimits struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// Pool declares a pool created at bootstrap. Side is "long" or "short".
type Pool struct {
	Collateral string `toml:"Collateral" yaml:"collateral"`
	Currency   string `toml:"Currency" yaml:"currency"`
	Side       string `toml:"Side" yaml:"side"`
}

// Bootstrap holds the values written by the first batch of a new ledger.
// Addresses are bech32 strings.
type Bootstrap struct {
	SuperAuthority    string   `toml:"SuperAuthority" yaml:"superAuthority"`
	FeeWallet         string   `toml:"FeeWallet" yaml:"feeWallet"`
	LiquidationWallet string   `toml:"LiquidationWallet" yaml:"liquidationWallet"`
	MaxApy            uint64   `toml:"MaxApy" yaml:"maxApy"`
	MaxLeverage       uint64   `toml:"MaxLeverage" yaml:"maxLeverage"`
	TradingEnabled    bool     `toml:"TradingEnabled" yaml:"tradingEnabled"`
	LPEnabled         bool     `toml:"LPEnabled" yaml:"lpEnabled"`
	Vaults            []string `toml:"Vaults" yaml:"vaults"`
	Pools             []Pool   `toml:"Pools" yaml:"pools"`
}

// Enabled reports whether the bootstrap section names a super authority.
func (b Bootstrap) Enabled() bool {
	return strings.TrimSpace(b.SuperAuthority) != ""
}

// Authorities decodes the three bootstrap addresses.
func (b Bootstrap) Authorities() (root, fee, liquidation crypto.Address, err error) {
	if root, err = crypto.DecodeAddress(strings.TrimSpace(b.SuperAuthority)); err != nil {
		return
	}
	if fee, err = crypto.DecodeAddress(strings.TrimSpace(b.FeeWallet)); err != nil {
		return
	}
	liquidation, err = crypto.DecodeAddress(strings.TrimSpace(b.LiquidationWallet))
	return
}

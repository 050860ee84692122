package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.Environment = strings.TrimSpace(c.Environment); c.Environment == "" {
		c.Environment = "local"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = ":9102"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Query.RequestsPerMinute == 0 {
		c.Query.RequestsPerMinute = DefaultQueryRequestsPerMinute
	}
	if c.Query.Burst == 0 {
		c.Query.Burst = DefaultQueryBurst
	}
	if c.Bootstrap.MaxApy == 0 {
		c.Bootstrap.MaxApy = DefaultMaxApy
	}
	if c.Bootstrap.MaxLeverage == 0 {
		c.Bootstrap.MaxLeverage = DefaultMaxLeverage
	}
	if c.Bootstrap.Vaults == nil {
		c.Bootstrap.Vaults = []string{}
	}
	if c.Bootstrap.Pools == nil {
		c.Bootstrap.Pools = []Pool{}
	}
	for i := range c.Bootstrap.Pools {
		c.Bootstrap.Pools[i].Side = strings.ToLower(strings.TrimSpace(c.Bootstrap.Pools[i].Side))
	}
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if c.Bootstrap.MaxLeverage < 100 {
		return fmt.Errorf("config: bootstrap.MaxLeverage must be at least 100")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: telemetry.SampleRatio outside [0,1]")
	}
	if c.Query.RequestsPerMinute < 0 || c.Query.Burst < 0 {
		return fmt.Errorf("config: query limits must not be negative")
	}
	if c.Bootstrap.Enabled() {
		if _, _, _, err := c.Bootstrap.Authorities(); err != nil {
			return fmt.Errorf("config: bootstrap address: %w", err)
		}
	}
	for i, p := range c.Bootstrap.Pools {
		if p.Side != "long" && p.Side != "short" {
			return fmt.Errorf("config: bootstrap.Pools[%d]: side %q must be long or short", i, p.Side)
		}
		if strings.TrimSpace(p.Collateral) == "" || strings.TrimSpace(p.Currency) == "" {
			return fmt.Errorf("config: bootstrap.Pools[%d]: collateral and currency required", i)
		}
	}
	return nil
}

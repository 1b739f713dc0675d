package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Campaign    CampaignConfig `mapstructure:"campaign"`
	Risk        RiskConfig     `mapstructure:"risk"`
	Replay      ReplayConfig   `mapstructure:"replay"`
}

// RiskConfig holds the per-call sizing parameters used by the replay tool.
type RiskConfig struct {
	AccountSize     float64 `mapstructure:"account_size"`
	RiskPctPerTrade float64 `mapstructure:"risk_pct_per_trade"`
}

type ReplayConfig struct {
	Symbol    string `mapstructure:"symbol"`
	InputPath string `mapstructure:"input_path"`
}

// campaignOverrideKeys are the campaign settings an operator may override on
// top of the timeframe profile.
var campaignOverrideKeys = []string{
	"campaign.campaign_window_hours",
	"campaign.max_pattern_gap_hours",
	"campaign.min_patterns_for_active",
	"campaign.expiration_hours",
	"campaign.max_concurrent_campaigns",
	"campaign.max_portfolio_heat_pct",
	"campaign.dormant_after_hours",
	"campaign.climax_volume_multiple",
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for _, key := range campaignOverrideKeys {
		if err := viper.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", key, err)
		}
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	campaign, err := resolveCampaignConfig(viper.GetString("campaign.timeframe"))
	if err != nil {
		return nil, err
	}
	config.Campaign = campaign

	if config.Risk.AccountSize <= 0 {
		return nil, fmt.Errorf("risk.account_size must be positive, got %v", config.Risk.AccountSize)
	}
	if config.Risk.RiskPctPerTrade <= 0 || config.Risk.RiskPctPerTrade > MaxRiskPctPerTrade {
		return nil, fmt.Errorf("risk.risk_pct_per_trade must be in (0, %v], got %v",
			MaxRiskPctPerTrade, config.Risk.RiskPctPerTrade)
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	return &config, nil
}

// resolveCampaignConfig starts from the timeframe profile and applies any
// explicitly configured override.
func resolveCampaignConfig(timeframe string) (CampaignConfig, error) {
	cfg, err := ProfileForTimeframe(timeframe)
	if err != nil {
		return CampaignConfig{}, err
	}

	if viper.IsSet("campaign.campaign_window_hours") {
		cfg.CampaignWindowHours = viper.GetInt("campaign.campaign_window_hours")
	}
	if viper.IsSet("campaign.max_pattern_gap_hours") {
		cfg.MaxPatternGapHours = viper.GetInt("campaign.max_pattern_gap_hours")
	}
	if viper.IsSet("campaign.min_patterns_for_active") {
		cfg.MinPatternsForActive = viper.GetInt("campaign.min_patterns_for_active")
	}
	if viper.IsSet("campaign.expiration_hours") {
		cfg.ExpirationHours = viper.GetInt("campaign.expiration_hours")
	}
	if viper.IsSet("campaign.max_concurrent_campaigns") {
		cfg.MaxConcurrentCampaigns = viper.GetInt("campaign.max_concurrent_campaigns")
	}
	if viper.IsSet("campaign.max_portfolio_heat_pct") {
		cfg.MaxPortfolioHeatPct = viper.GetFloat64("campaign.max_portfolio_heat_pct")
	}
	if viper.IsSet("campaign.dormant_after_hours") {
		cfg.DormantAfterHours = viper.GetInt("campaign.dormant_after_hours")
	}
	if viper.IsSet("campaign.climax_volume_multiple") {
		cfg.ClimaxVolumeMultiple = viper.GetFloat64("campaign.climax_volume_multiple")
	}

	if err := cfg.Validate(); err != nil {
		return CampaignConfig{}, fmt.Errorf("invalid campaign configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Campaign profile; individual settings come from ProfileForTimeframe
	viper.SetDefault("campaign.timeframe", "1h")

	// Risk
	viper.SetDefault("risk.account_size", 100000.0)
	viper.SetDefault("risk.risk_pct_per_trade", 2.0)

	// Replay
	viper.SetDefault("replay.symbol", "")
	viper.SetDefault("replay.input_path", "patterns.jsonl")
}

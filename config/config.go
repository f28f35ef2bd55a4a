// Package config defines the studyplan application configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level studyplan configuration.
type Config struct {
	Timezone  string          `json:"timezone" yaml:"timezone"` // IANA name, e.g. "America/New_York"
	Planner   PlannerConfig   `json:"planner" yaml:"planner"`
	Calendar  CalendarConfig  `json:"calendar" yaml:"calendar"`
	Classroom ClassroomConfig `json:"classroom" yaml:"classroom"`
	Oracle    OracleConfig    `json:"oracle" yaml:"oracle"`
	DBPath    string          `json:"db_path" yaml:"db_path"`
	LogLevel  string          `json:"log_level" yaml:"log_level"`
}

// PlannerConfig bounds the availability computation.
type PlannerConfig struct {
	WorkStartHour int    `json:"work_start_hour" yaml:"work_start_hour"`
	WorkEndHour   int    `json:"work_end_hour" yaml:"work_end_hour"`
	HorizonDays   int    `json:"horizon_days" yaml:"horizon_days"`
	RefreshCron   string `json:"refresh_cron,omitempty" yaml:"refresh_cron"` // watch-mode schedule
}

// CalendarConfig names the busy-time sources and the write target.
type CalendarConfig struct {
	GoogleAccessToken string    `json:"google_access_token,omitempty" yaml:"google_access_token"`
	GoogleCalendarID  string    `json:"google_calendar_id,omitempty" yaml:"google_calendar_id"`
	ICSFeeds          []ICSFeed `json:"ics_feeds,omitempty" yaml:"ics_feeds"`
}

// ICSFeed is one read-only iCalendar subscription.
type ICSFeed struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url" yaml:"url"`
}

// ClassroomConfig controls the coursework fetcher.
type ClassroomConfig struct {
	AccessToken string `json:"access_token,omitempty" yaml:"access_token"`
}

// OracleConfig selects and configures the scheduling oracle.
type OracleConfig struct {
	Provider string `json:"provider" yaml:"provider"` // "mock" or "gemini"
	APIKey   string `json:"api_key,omitempty" yaml:"api_key"`
	Model    string `json:"model,omitempty" yaml:"model"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Local",
		Planner: PlannerConfig{
			WorkStartHour: 8,
			WorkEndHour:   22,
			HorizonDays:   30,
		},
		Calendar: CalendarConfig{
			GoogleCalendarID: "primary",
		},
		Oracle: OracleConfig{
			Provider: "mock",
		},
		DBPath:   "./studyplan.db",
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the planner cannot run with.
func (c *Config) Validate() error {
	if c.Planner.WorkStartHour < 0 || c.Planner.WorkEndHour > 24 ||
		c.Planner.WorkStartHour >= c.Planner.WorkEndHour {
		return fmt.Errorf("work hours %d-%d are not a valid daily window",
			c.Planner.WorkStartHour, c.Planner.WorkEndHour)
	}
	if c.Planner.HorizonDays <= 0 {
		return fmt.Errorf("horizon_days must be positive, got %d", c.Planner.HorizonDays)
	}
	switch c.Oracle.Provider {
	case "mock":
	case "gemini":
		if c.Oracle.APIKey == "" {
			return fmt.Errorf("oracle provider gemini requires an api_key")
		}
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	return nil
}

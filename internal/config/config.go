package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"harvestbot/internal/report"
)

type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	DatabasePath string `yaml:"database_path"`
	Timezone     string `yaml:"timezone"`

	// ReportSchedule is a cron expression for the weekly report email.
	ReportSchedule string `yaml:"report_schedule"`

	Harvest HarvestConfig `yaml:"harvest"`
	LLM     LLMConfig     `yaml:"llm"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Rates   RatesConfig   `yaml:"rates"`
	Targets TargetsConfig `yaml:"targets"`
}

type HarvestConfig struct {
	AccountID string `yaml:"account_id"`
	Token     string `yaml:"token"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type SMTPConfig struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// RatesConfig makes the billed-amount rate policy explicit: which
// entry-level field prices billable hours and what to charge when it is
// absent.
type RatesConfig struct {
	Source   string  `yaml:"source"`
	Fallback float64 `yaml:"fallback"`
}

// TargetsConfig declares the named business categories raw provider records
// are consolidated into. List order is matching precedence.
type TargetsConfig struct {
	Projects        []ProjectTarget `yaml:"projects"`
	Clients         []ClientTarget  `yaml:"clients"`
	HostingKeywords []string        `yaml:"hosting_keywords"`
}

type ProjectTarget struct {
	Name           string   `yaml:"name"`
	Keywords       []string `yaml:"keywords"`
	BudgetFallback float64  `yaml:"budget_fallback"`
}

type ClientTarget struct {
	Name         string   `yaml:"name"`
	Keywords     []string `yaml:"keywords"`
	SupportHours float64  `yaml:"support_hours"`
	SupportRate  float64  `yaml:"support_rate"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3040"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "harvestbot.db"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.ReportSchedule == "" {
		cfg.ReportSchedule = "0 8 * * 1" // Monday 8 AM
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Rates.Source == "" {
		cfg.Rates.Source = report.RateSourceBillable
	}
	if cfg.Rates.Fallback == 0 {
		cfg.Rates.Fallback = 75
	}
	if len(cfg.Targets.HostingKeywords) == 0 {
		cfg.Targets.HostingKeywords = []string{"hosting"}
	}

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:     ":3040",
		DatabasePath:   "harvestbot.db",
		Timezone:       "Local",
		ReportSchedule: "0 8 * * 1",
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		SMTP: SMTPConfig{Port: 587},
		Rates: RatesConfig{
			Source:   report.RateSourceBillable,
			Fallback: 75,
		},
		Targets: TargetsConfig{
			HostingKeywords: []string{"hosting"},
		},
	}
}

// Configured reports whether Harvest credentials are present. Checked before
// any upstream call.
func (c *Config) Configured() bool {
	return c.Harvest.AccountID != "" && c.Harvest.Token != ""
}

func (c *Config) GetTimezone() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ReportTargets converts the configured lists into the ordered target groups
// the categorization core consumes. Keywords are lowercased here so matching
// stays case-insensitive regardless of how the config was written.
func (c *Config) ReportTargets() report.Targets {
	t := report.Targets{
		HostingKeywords: lowerAll(c.Targets.HostingKeywords),
	}
	for _, p := range c.Targets.Projects {
		t.Projects = append(t.Projects, report.TargetGroup{
			Name:           p.Name,
			Keywords:       lowerAll(p.Keywords),
			Category:       report.CategoryPrimary,
			BudgetFallback: p.BudgetFallback,
		})
	}
	for _, cl := range c.Targets.Clients {
		t.Clients = append(t.Clients, report.TargetGroup{
			Name:         cl.Name,
			Keywords:     lowerAll(cl.Keywords),
			Category:     report.CategoryHostingSupport,
			SupportHours: cl.SupportHours,
			SupportRate:  cl.SupportRate,
		})
	}
	return t
}

func (c *Config) RatePolicy() report.RatePolicy {
	return report.RatePolicy{
		Source:   c.Rates.Source,
		Fallback: c.Rates.Fallback,
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

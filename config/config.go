/*
Package config loads the process configuration of the server and the CLI.

PURPOSE:
  Reads a YAML file, applies PRODUCAO_* environment overrides (a .env file
  in the working directory is loaded first when present) and converts the
  run section into the explicit payroll.Config handed to the Runner.
  Nothing below the entry points reads the environment.

PRECEDENCE:
  defaults < YAML file < environment

EXAMPLE FILE:
  database:
    path: ./data/producao.db
  server:
    port: 8080
  log:
    level: info
    format: json
  run:
    pay_on_business_day_n: 5
    max_admin_percent: "10"
    holiday_calendar: sp
    internal_clients: ["0"]
    categories:
      client_revenue: "10"
      client_cost: "20"
      internal_overhead: "21"

SEE ALSO:
  - payroll/config.go: The run configuration this produces
  - config/logger.go: Logger construction
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/librecode/producao/allocation"
	"github.com/librecode/producao/generic"
	"github.com/librecode/producao/payroll"
	"github.com/librecode/producao/tax"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PRODUCAO_"

// Config is the whole process configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Run      RunConfig      `yaml:"run"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// RunConfig holds the run defaults. Percentages are strings so they keep
// their exact decimal value.
type RunConfig struct {
	PayOnBusinessDayN    int                      `yaml:"pay_on_business_day_n"`
	MaxAdminPercent      string                   `yaml:"max_admin_percent"`
	BusinessDaysOverride *int                     `yaml:"business_days_override"`
	ForecastMode         bool                     `yaml:"forecast_mode"`
	HolidayCalendar      string                   `yaml:"holiday_calendar"`
	HoursPerDay          int                      `yaml:"hours_per_day"`
	ContributionClass    string                   `yaml:"contribution_class"`
	InternalClients      []string                 `yaml:"internal_clients"`
	Categories           allocation.CategoryRoots `yaml:"categories"`
}

// Default returns the configuration used when no file or variable is set.
func Default() Config {
	run := payroll.DefaultConfig()
	return Config{
		Database: DatabaseConfig{Path: "./data/producao.db"},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Run: RunConfig{
			PayOnBusinessDayN: run.PayOnBusinessDayN,
			MaxAdminPercent:   run.MaxAdminPercent.String(),
			HoursPerDay:       run.HoursPerDay,
			ContributionClass: string(run.ContributionClass),
		},
	}
}

// Load reads path (or $PRODUCAO_CONFIG when path is empty), then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the process settings and the run defaults.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return &generic.ConfigurationError{Field: "database.path", Reason: "required"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &generic.ConfigurationError{Field: "server.port", Reason: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return &generic.ConfigurationError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	run, err := c.Run.Payroll()
	if err != nil {
		return err
	}
	return run.Validate()
}

// Payroll converts the run section into a payroll.Config.
func (r RunConfig) Payroll() (payroll.Config, error) {
	out := payroll.DefaultConfig()
	if r.MaxAdminPercent != "" {
		pct, err := decimal.NewFromString(strings.TrimSpace(r.MaxAdminPercent))
		if err != nil {
			return out, &generic.ConfigurationError{Field: "max_admin_percent", Reason: fmt.Sprintf("not a number: %q", r.MaxAdminPercent)}
		}
		out.MaxAdminPercent = pct
	}
	out.PayOnBusinessDayN = r.PayOnBusinessDayN
	out.BusinessDaysOverride = r.BusinessDaysOverride
	out.ForecastMode = r.ForecastMode
	out.HolidayCalendarID = r.HolidayCalendar
	if r.HoursPerDay > 0 {
		out.HoursPerDay = r.HoursPerDay
	}
	if r.ContributionClass != "" {
		out.ContributionClass = tax.Class(r.ContributionClass)
	}
	out.Roots = r.Categories
	for _, id := range r.InternalClients {
		out.InternalClients = append(out.InternalClients, generic.ClientID(id))
	}
	return out, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func (c *Config) applyEnv() error {
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Run.MaxAdminPercent, "MAX_ADMIN_PERCENT")
	setString(&c.Run.HolidayCalendar, "HOLIDAY_CALENDAR")
	setString(&c.Run.ContributionClass, "CONTRIBUTION_CLASS")
	setCategory(&c.Run.Categories.ClientRevenue, "CATEGORY_CLIENT_REVENUE")
	setCategory(&c.Run.Categories.ClientCost, "CATEGORY_CLIENT_COST")
	setCategory(&c.Run.Categories.InternalOverhead, "CATEGORY_INTERNAL_OVERHEAD")
	setCategory(&c.Run.Categories.Advance, "CATEGORY_ADVANCE")
	setCategory(&c.Run.Categories.HealthInsurance, "CATEGORY_HEALTH_INSURANCE")
	setCategory(&c.Run.Categories.Tax, "CATEGORY_TAX")

	if v, ok := lookup("ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitCSV(v)
	}
	if v, ok := lookup("INTERNAL_CLIENTS"); ok {
		c.Run.InternalClients = splitCSV(v)
	}
	if v, ok := lookup("IGNORED_CATEGORIES"); ok {
		c.Run.Categories.Ignored = nil
		for _, id := range splitCSV(v) {
			c.Run.Categories.Ignored = append(c.Run.Categories.Ignored, generic.CategoryID(id))
		}
	}

	if err := setInt(&c.Server.Port, "PORT", "server.port"); err != nil {
		return err
	}
	if err := setInt(&c.Run.PayOnBusinessDayN, "PAY_ON_BUSINESS_DAY_N", "pay_on_business_day_n"); err != nil {
		return err
	}
	if err := setInt(&c.Run.HoursPerDay, "HOURS_PER_DAY", "hours_per_day"); err != nil {
		return err
	}
	if v, ok := lookup("BUSINESS_DAYS_OVERRIDE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &generic.ConfigurationError{Field: "business_days_override", Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		c.Run.BusinessDaysOverride = &n
	}
	if v, ok := lookup("FORECAST_MODE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &generic.ConfigurationError{Field: "forecast_mode", Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		c.Run.ForecastMode = b
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setCategory(dst *generic.CategoryID, key string) {
	if v, ok := lookup(key); ok {
		*dst = generic.CategoryID(v)
	}
}

func setInt(dst *int, key, field string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &generic.ConfigurationError{Field: field, Reason: fmt.Sprintf("not an integer: %q", v)}
	}
	*dst = n
	return nil
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

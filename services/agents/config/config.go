package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ramiqadoumi/go-pricing-agents/internal/agent"
	"github.com/ramiqadoumi/go-pricing-agents/internal/bundling"
	"github.com/ramiqadoumi/go-pricing-agents/internal/domain"
	"github.com/ramiqadoumi/go-pricing-agents/internal/orchestrator"
	"github.com/ramiqadoumi/go-pricing-agents/internal/pricing"
	"github.com/ramiqadoumi/go-pricing-agents/internal/signals"
)

// minInterval is the shortest schedule accepted without allow_short_intervals.
const minInterval = time.Minute

// AgentNames lists every agent in start order.
var AgentNames = []string{
	domain.AgentInventory,
	domain.AgentCart,
	domain.AgentCompetitor,
	domain.AgentBundler,
	domain.AgentPricing,
}

var defaultIntervals = map[string]time.Duration{
	domain.AgentInventory:  5 * time.Minute,
	domain.AgentCart:       10 * time.Minute,
	domain.AgentCompetitor: 15 * time.Minute,
	domain.AgentBundler:    30 * time.Minute,
	domain.AgentPricing:    10 * time.Minute,
}

// AutoApply bounds how often and how confidently recommendations are applied.
type AutoApply struct {
	BundleThreshold float64
	PriceThreshold  float64
	Limit           int
	Window          time.Duration
}

// Config holds typed configuration for the agents service.
type Config struct {
	LogLevel        string
	LogFile         string
	MetricsAddr     string
	OTelEndpoint    string
	OTelSampleRatio float64

	PostgresDSN      string
	RedisAddr        string
	KafkaBrokers     string
	KafkaTopicPrefix string
	NATSURL          string
	NATSPrefix       string
	CatalogFile      string

	WebhookURL      string
	WebhookHeaders  map[string]string
	WebhookTimeout  time.Duration
	SMTPHost        string
	SMTPPort        int
	SMTPFrom        string
	SMTPUsername    string
	SMTPPassword    string
	AlertRecipients []string

	CoordinationInterval time.Duration
	AllowShortIntervals  bool
	AutoApply            AutoApply

	Pricing   pricing.Config
	Bundling  bundling.Config
	Inventory signals.InventoryConfig
	Cart      signals.CartConfig

	Agents map[string]agent.Config
}

// SetDefaults registers the default for every key. Flags, env and the
// config file override them.
func SetDefaults(v *viper.Viper) {
	p := pricing.DefaultConfig()
	b := bundling.DefaultConfig()
	inv := signals.DefaultInventoryConfig()
	cart := signals.DefaultCartConfig()
	orch := orchestrator.DefaultConfig()

	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("otel_sample_ratio", 1.0)
	v.SetDefault("kafka_topic_prefix", "pricing-agents")
	v.SetDefault("nats_prefix", "pricing")
	v.SetDefault("catalog_file", "catalog.yaml")
	v.SetDefault("webhook_timeout", 15*time.Second)
	v.SetDefault("smtp_port", 25)

	v.SetDefault("coordination_interval", orch.CoordinationInterval)
	v.SetDefault("allow_short_intervals", false)
	v.SetDefault("auto_apply.bundle_threshold", orch.BundleThreshold)
	v.SetDefault("auto_apply.price_threshold", orch.PriceThreshold)
	v.SetDefault("auto_apply.limit", 20)
	v.SetDefault("auto_apply.window", time.Hour)

	v.SetDefault("pricing.max_price_increase", p.MaxIncrease)
	v.SetDefault("pricing.max_price_decrease", p.MaxDecrease)
	v.SetDefault("pricing.change_threshold", p.ChangeThreshold)
	v.SetDefault("pricing.competitor_response_factor", p.CompetitorResponseFactor)
	v.SetDefault("pricing.default_elasticity", p.DefaultElasticity)

	v.SetDefault("bundling.min_size", b.MinSize)
	v.SetDefault("bundling.max_size", b.MaxSize)
	v.SetDefault("bundling.min_discount", b.MinDiscount)
	v.SetDefault("bundling.max_discount", b.MaxDiscount)
	v.SetDefault("bundling.confidence_threshold", b.ConfidenceThreshold)
	v.SetDefault("bundling.max_selected", b.MaxSelected)
	v.SetDefault("bundling.max_per_type", b.MaxPerType)
	v.SetDefault("bundling.max_active", b.MaxActive)

	v.SetDefault("inventory.low_stock_threshold", inv.LowStockThreshold)
	v.SetDefault("inventory.high_stock_threshold", inv.HighStockThreshold)
	v.SetDefault("inventory.forecast_days", inv.ForecastDays)
	v.SetDefault("inventory.lookback_days", inv.LookbackDays)

	v.SetDefault("cart.abandonment_hours", cart.AbandonmentHours)
	v.SetDefault("cart.min_support", cart.MinSupport)
	v.SetDefault("cart.min_confidence", cart.MinConfidence)
	v.SetDefault("cart.lookback_days", cart.LookbackDays)

	for _, name := range AgentNames {
		v.SetDefault("agents."+name+".enabled", true)
		v.SetDefault("agents."+name+".interval", defaultIntervals[name])
	}
}

// Load reads all values from the given viper instance. Call SetDefaults first.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		LogLevel:        v.GetString("log_level"),
		LogFile:         v.GetString("log_file"),
		MetricsAddr:     v.GetString("metrics_addr"),
		OTelEndpoint:    v.GetString("otel_endpoint"),
		OTelSampleRatio: v.GetFloat64("otel_sample_ratio"),

		PostgresDSN:      v.GetString("postgres_dsn"),
		RedisAddr:        v.GetString("redis_addr"),
		KafkaBrokers:     v.GetString("kafka_brokers"),
		KafkaTopicPrefix: v.GetString("kafka_topic_prefix"),
		NATSURL:          v.GetString("nats_url"),
		NATSPrefix:       v.GetString("nats_prefix"),
		CatalogFile:      v.GetString("catalog_file"),

		WebhookURL:      v.GetString("webhook_url"),
		WebhookHeaders:  v.GetStringMapString("webhook_headers"),
		WebhookTimeout:  v.GetDuration("webhook_timeout"),
		SMTPHost:        v.GetString("smtp_host"),
		SMTPPort:        v.GetInt("smtp_port"),
		SMTPFrom:        v.GetString("smtp_from"),
		SMTPUsername:    v.GetString("smtp_username"),
		SMTPPassword:    v.GetString("smtp_password"),
		AlertRecipients: v.GetStringSlice("alert_recipients"),

		CoordinationInterval: v.GetDuration("coordination_interval"),
		AllowShortIntervals:  v.GetBool("allow_short_intervals"),
		AutoApply: AutoApply{
			BundleThreshold: v.GetFloat64("auto_apply.bundle_threshold"),
			PriceThreshold:  v.GetFloat64("auto_apply.price_threshold"),
			Limit:           v.GetInt("auto_apply.limit"),
			Window:          v.GetDuration("auto_apply.window"),
		},
		Agents: make(map[string]agent.Config, len(AgentNames)),
	}

	cfg.Pricing = pricing.DefaultConfig()
	cfg.Pricing.MaxIncrease = v.GetFloat64("pricing.max_price_increase")
	cfg.Pricing.MaxDecrease = v.GetFloat64("pricing.max_price_decrease")
	cfg.Pricing.ChangeThreshold = v.GetFloat64("pricing.change_threshold")
	cfg.Pricing.CompetitorResponseFactor = v.GetFloat64("pricing.competitor_response_factor")
	cfg.Pricing.DefaultElasticity = v.GetFloat64("pricing.default_elasticity")

	cfg.Bundling = bundling.DefaultConfig()
	cfg.Bundling.MinSize = v.GetInt("bundling.min_size")
	cfg.Bundling.MaxSize = v.GetInt("bundling.max_size")
	cfg.Bundling.MinDiscount = v.GetFloat64("bundling.min_discount")
	cfg.Bundling.MaxDiscount = v.GetFloat64("bundling.max_discount")
	cfg.Bundling.ConfidenceThreshold = v.GetFloat64("bundling.confidence_threshold")
	cfg.Bundling.MaxSelected = v.GetInt("bundling.max_selected")
	cfg.Bundling.MaxPerType = v.GetInt("bundling.max_per_type")
	cfg.Bundling.MaxActive = v.GetInt("bundling.max_active")
	if v.IsSet("bundling.category_pairs") {
		var pairs []bundling.CategoryPair
		if err := v.UnmarshalKey("bundling.category_pairs", &pairs); err != nil {
			return Config{}, fmt.Errorf("bundling.category_pairs: %w", err)
		}
		cfg.Bundling.CategoryPairs = pairs
	}

	cfg.Inventory = signals.DefaultInventoryConfig()
	cfg.Inventory.LowStockThreshold = v.GetInt("inventory.low_stock_threshold")
	cfg.Inventory.HighStockThreshold = v.GetInt("inventory.high_stock_threshold")
	cfg.Inventory.ForecastDays = v.GetInt("inventory.forecast_days")
	cfg.Inventory.LookbackDays = v.GetInt("inventory.lookback_days")

	cfg.Cart = signals.DefaultCartConfig()
	cfg.Cart.AbandonmentHours = v.GetInt("cart.abandonment_hours")
	cfg.Cart.MinSupport = v.GetFloat64("cart.min_support")
	cfg.Cart.MinConfidence = v.GetFloat64("cart.min_confidence")
	cfg.Cart.LookbackDays = v.GetInt("cart.lookback_days")

	for _, name := range AgentNames {
		prefix := "agents." + name + "."
		cfg.Agents[name] = agent.Config{
			Enabled:  v.GetBool(prefix + "enabled"),
			Interval: v.GetDuration(prefix + "interval"),
			Schedule: v.GetString(prefix + "schedule"),
			Timeout:  v.GetDuration(prefix + "timeout"),
		}
	}
	return cfg, nil
}

// Brokers splits the comma-separated Kafka broker list.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Orchestrator returns the coordination settings.
func (c Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		CoordinationInterval: c.CoordinationInterval,
		BundleThreshold:      c.AutoApply.BundleThreshold,
		PriceThreshold:       c.AutoApply.PriceThreshold,
	}
}

// Validate reports the first out-of-range value as a ConfigInvalidError.
func (c Config) Validate() error {
	unit := []struct {
		field string
		value float64
	}{
		{"auto_apply.bundle_threshold", c.AutoApply.BundleThreshold},
		{"auto_apply.price_threshold", c.AutoApply.PriceThreshold},
		{"bundling.confidence_threshold", c.Bundling.ConfidenceThreshold},
		{"bundling.min_discount", c.Bundling.MinDiscount},
		{"bundling.max_discount", c.Bundling.MaxDiscount},
		{"cart.min_support", c.Cart.MinSupport},
		{"cart.min_confidence", c.Cart.MinConfidence},
		{"pricing.max_price_increase", c.Pricing.MaxIncrease},
		{"pricing.max_price_decrease", c.Pricing.MaxDecrease},
		{"pricing.change_threshold", c.Pricing.ChangeThreshold},
		{"otel_sample_ratio", c.OTelSampleRatio},
	}
	for _, u := range unit {
		if u.value < 0 || u.value > 1 {
			return invalid(u.field, "must be within [0, 1], got %g", u.value)
		}
	}

	if c.Bundling.MinDiscount >= c.Bundling.MaxDiscount {
		return invalid("bundling.min_discount", "must be below max_discount (%g >= %g)", c.Bundling.MinDiscount, c.Bundling.MaxDiscount)
	}
	if c.Bundling.MinSize < 2 {
		return invalid("bundling.min_size", "must be at least 2, got %d", c.Bundling.MinSize)
	}
	if c.Bundling.MinSize >= c.Bundling.MaxSize {
		return invalid("bundling.min_size", "must be below max_size (%d >= %d)", c.Bundling.MinSize, c.Bundling.MaxSize)
	}
	if c.Inventory.LowStockThreshold >= c.Inventory.HighStockThreshold {
		return invalid("inventory.low_stock_threshold", "must be below high_stock_threshold")
	}
	if c.AutoApply.Limit <= 0 {
		return invalid("auto_apply.limit", "must be positive, got %d", c.AutoApply.Limit)
	}
	if c.AutoApply.Window <= 0 {
		return invalid("auto_apply.window", "must be positive")
	}

	if err := c.checkInterval("coordination_interval", c.CoordinationInterval); err != nil {
		return err
	}
	for _, name := range AgentNames {
		a := c.Agents[name]
		if !a.Enabled || a.Schedule != "" {
			continue
		}
		if err := c.checkInterval("agents."+name+".interval", a.Interval); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) checkInterval(field string, d time.Duration) error {
	if d <= 0 {
		return invalid(field, "must be positive")
	}
	if d < minInterval && !c.AllowShortIntervals {
		return invalid(field, "%s is below %s; set allow_short_intervals to permit it", d, minInterval)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return &domain.ConfigInvalidError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

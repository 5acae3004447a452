package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultAgentsYAML = `# go-pricing-agents config
# Priority: CLI flag > env > this file > default.

log_level:    "info"
# log_file:   "/var/log/pricing-agents/agents.log"   # rotated at 100MB
metrics_addr: ":9090"
# otel_endpoint: "localhost:4318"
# otel_sample_ratio: 0.1

# Stores. Leave a value empty to run without it.
# Without postgres_dsn products come from catalog_file and only the
# pricing and bundling agents run.
postgres_dsn: ""
redis_addr:   ""
catalog_file: "catalog.yaml"

# Broker mirrors of every bus message.
kafka_brokers:      ""                 # e.g. "localhost:9092"
kafka_topic_prefix: "pricing-agents"
nats_url:           ""                 # e.g. "nats://localhost:4222"
nats_prefix:        "pricing"

# Where accepted recommendations go besides the database.
webhook_url: ""
webhook_timeout: "15s"
# webhook_headers:
#   Authorization: "Bearer <token>"
smtp_host: ""
smtp_port: 25
smtp_from: "pricing-agents@localhost"
alert_recipients: []

coordination_interval: "5m"
allow_short_intervals: false

auto_apply:
  bundle_threshold: 0.8
  price_threshold:  0.85
  limit:            20     # applies per window
  window:           "1h"

pricing:
  max_price_increase:         0.20
  max_price_decrease:         0.30
  change_threshold:           0.02
  competitor_response_factor: 0.8
  default_elasticity:         -1.5

bundling:
  min_size:             2
  max_size:             4
  min_discount:         0.05
  max_discount:         0.25
  confidence_threshold: 0.6
  max_selected:         10
  max_per_type:         3
  max_active:           20
  category_pairs:
    - {primary: audio, secondary: mobile_accessories, confidence: 0.65}
    - {primary: mobile_accessories, secondary: computer_accessories, confidence: 0.6}

inventory:
  low_stock_threshold:  10
  high_stock_threshold: 100
  forecast_days:        7
  lookback_days:        30

cart:
  abandonment_hours: 24
  min_support:       0.1
  min_confidence:    0.5
  lookback_days:     30

# interval accepts Go durations; schedule takes a cron expression and wins.
agents:
  inventory_monitor:  {enabled: true, interval: "5m"}
  cart_behavior:      {enabled: true, interval: "10m"}
  competitor_pricing: {enabled: true, interval: "15m"}
  dynamic_bundler:    {enabled: true, interval: "30m"}
  dynamic_pricing:    {enabled: true, interval: "10m"}
`

func newInitCmd(serviceName, defaultYAML string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: fmt.Sprintf(`Write default configuration for %s.

If --config is given the file is written to that path.
Otherwise it is written to ~/.go-pricing-agents/%s.yaml.
Fails if the file already exists unless --force is passed.`, serviceName, serviceName),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := cfgFile
			if dest == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("home dir: %w", err)
				}
				dest = filepath.Join(home, ".go-pricing-agents", serviceName+".yaml")
			}
			if err := writeConfig(dest, defaultYAML, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}

func writeConfig(dest, content string, force bool) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", dest, err)
		}
	}
	if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

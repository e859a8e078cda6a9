package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/loanbook-backend/internal/ledger"
	"github.com/yungbote/loanbook-backend/internal/platform/envutil"
	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

type Config struct {
	Port             string            `yaml:"port"`
	Policy           ledger.PolicyKind `yaml:"policy"`
	RepairWorkers    int               `yaml:"repair_workers"`
	CoalescerWorkers int               `yaml:"coalescer_workers"`
	QueueEnabled     bool              `yaml:"queue_enabled"`
}

// LoadConfig resolves configuration from the environment, with an optional
// YAML file (CONFIG_FILE) layered underneath. Environment variables win.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:             "8080",
		Policy:           ledger.PolicyChecklistStrict,
		RepairWorkers:    4,
		CoalescerWorkers: 2,
		QueueEnabled:     false,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info("loaded config file", "path", path)
	}

	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.RepairWorkers = envutil.Int("LEDGER_REPAIR_WORKERS", cfg.RepairWorkers)
	cfg.CoalescerWorkers = envutil.Int("LEDGER_COALESCER_WORKERS", cfg.CoalescerWorkers)
	cfg.QueueEnabled = envutil.Bool("LEDGER_QUEUE_ENABLED", cfg.QueueEnabled)

	if raw := os.Getenv("LEDGER_POLICY"); raw != "" {
		kind, err := ledger.ParsePolicyKind(raw)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = kind
	}
	if !cfg.Policy.Valid() {
		return cfg, fmt.Errorf("invalid policy %q in config", cfg.Policy)
	}
	return cfg, nil
}

package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
	"github.com/spf13/cobra"
)

// CommandContext holds common resources for command execution.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Holder *ruleset.Holder
}

// NewCommandContext loads the configured rule set into a holder.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	rs, err := loadRuleSet(cfg.Rules, logger)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: logger,
		Holder: ruleset.NewHolder(rs),
	}, nil
}

// RuleSet returns the active snapshot.
func (c *CommandContext) RuleSet() *ruleset.RuleSet {
	return c.Holder.Load()
}

func loadRuleSet(path string, logger *slog.Logger) (*ruleset.RuleSet, error) {
	rs, err := ruleset.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set %s: %w", path, err)
	}
	for _, w := range rs.Warnings {
		logger.Warn("rule set warning", "path", path, "warning", w)
	}
	logger.Debug("rule set loaded",
		"path", path,
		"version", rs.Version,
		"tables", rs.Catalog.Len(),
		"foreign_keys", rs.Graph.EdgeCount(),
		"cached_paths", rs.Graph.PathCount())
	return rs, nil
}

// outputFormat returns the per-command --format override, else the
// configured output.
func outputFormat(cmdFormat string, cfg *config.Config) string {
	if cmdFormat != "" {
		return cmdFormat
	}
	return cfg.Output
}

// Package guard runs the SQL safety pipeline: it parses a candidate query,
// checks it against the active rule set in a fixed sequence of stages and
// returns an accepted, possibly rewritten, query or a rejection.
//
// Rejections are ordinary results. The error return of Validate is reserved
// for a missing rule set, which is a caller bug.
package guard

import (
	"errors"
	"log/slog"

	"github.com/leapstack-labs/sqlgate/pkg/ruleset"
)

// ErrNoRuleSet is returned when validation is attempted without a rule set.
var ErrNoRuleSet = errors.New("no rule set loaded")

// Source supplies the active rule set. *ruleset.Holder implements it.
type Source interface {
	Load() *ruleset.RuleSet
}

// Validator validates queries against the snapshot its source holds at the
// start of each call. It is safe for concurrent use.
type Validator struct {
	source Source
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger. Rejections are logged at Info and stage
// progress at Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a validator reading rule sets from source.
func New(source Source, opts ...Option) *Validator {
	v := &Validator{
		source: source,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks sql against the active rule set.
func (v *Validator) Validate(sql string) (*Result, error) {
	if v.source == nil {
		return nil, ErrNoRuleSet
	}
	return ValidateWith(v.source.Load(), sql, v.logger)
}

// ValidateWith checks sql against an explicit rule-set snapshot. A nil
// logger discards output.
func ValidateWith(rs *ruleset.RuleSet, sql string, logger *slog.Logger) (*Result, error) {
	if rs == nil {
		return nil, ErrNoRuleSet
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("rule_set_version", rs.Version)

	r := newRun(rs, sql)
	for _, st := range pipeline {
		if issue := st.check(r); issue != nil {
			issue.Stage = st.stage
			logger.Info("query rejected", "stage", issue.Stage, "kind", issue.Kind, "reason", issue.Message)
			return r.reject(issue), nil
		}
		logger.Debug("stage passed", "stage", st.stage)
	}

	res := r.accept()
	logger.Debug("query accepted",
		"join_depth", res.JoinDepth,
		"warnings", len(res.Warnings),
		"rewritten", res.FinalSQL != sql)
	return res, nil
}

// Package config provides configuration management for the sqlgate CLI.
package config

// Config holds all CLI configuration options.
type Config struct {
	// Rules is the path to the rule-set document.
	Rules       string `koanf:"rules"`
	LogLevel    string `koanf:"log_level"`
	Verbose     bool   `koanf:"verbose"`
	Output      string `koanf:"output"`
	Watch       bool   `koanf:"watch"`
	Concurrency int    `koanf:"concurrency"`
}

// Default configuration values.
const (
	DefaultRules       = "rules.yaml"
	DefaultLogLevel    = "warn"
	DefaultOutput      = "text"
	DefaultConcurrency = 4
)

// Output formats.
const (
	OutputText     = "text"
	OutputJSON     = "json"
	OutputMarkdown = "markdown"
)

// OutputFormats lists the accepted values of the output key.
var OutputFormats = []string{OutputText, OutputJSON, OutputMarkdown}

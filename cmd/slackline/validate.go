package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keepmind9/slackline/internal/core"
	"github.com/keepmind9/slackline/internal/slack"
)

var (
	validateConfigFile string
	validateShow       bool
	validateJSON       bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Config   string   `json:"config"`
	SendVia  string   `json:"send_via,omitempty"`
	Store    string   `json:"store,omitempty"`
	SQS      bool     `json:"sqs"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate slackline configuration file",
	Long: `Validate the slackline configuration file without connecting to Slack.

This command checks:
  - YAML syntax
  - Required fields
  - Slack transport settings
  - Store and SQS relay settings

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		configFile := validateConfigFile
		if configFile == "" {
			configFile = findConfigFile()
		}
		if configFile == "" {
			fmt.Fprintln(out, "❌ No configuration file found")
			fmt.Fprintln(out, "\nSpecify a config file with --config or ensure one exists at:")
			for _, loc := range configLocations() {
				fmt.Fprintf(out, "  - %s\n", loc)
			}
			os.Exit(1)
		}

		result, cfg := validateFile(configFile)
		if validateShow && cfg != nil {
			showConfig(out, configFile, cfg)
		}
		outputValidationResult(out, result, validateJSON)

		// Exit with appropriate code
		if !result.Valid {
			os.Exit(1)
		}
	},
}

// configLocations lists where validate looks for a config file
func configLocations() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/slackline/config.yaml"),
		"/etc/slackline/config.yaml",
	}
}

func findConfigFile() string {
	for _, loc := range configLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// validateFile loads configFile and collects errors and warnings
func validateFile(configFile string) (ValidationResult, *core.Config) {
	cfg, err := core.LoadConfig(configFile)
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Config: configFile,
			Errors: []string{err.Error()},
		}, nil
	}

	return ValidationResult{
		Valid:    true,
		Config:   configFile,
		SendVia:  cfg.Slack.SendVia,
		Store:    cfg.Store.Driver,
		SQS:      cfg.SQS.Enabled,
		Warnings: validateConfigDetails(cfg),
	}, cfg
}

func showConfig(w io.Writer, configFile string, cfg *core.Config) {
	fmt.Fprintf(w, "✓ Configuration loaded: %s\n\n", configFile)
	fmt.Fprintf(w, "Slack:\n")
	fmt.Fprintf(w, "  - token: %s\n", core.MaskSecret(cfg.Slack.Token))
	fmt.Fprintf(w, "  - api_url: %s\n", cfg.Slack.APIURL)
	fmt.Fprintf(w, "  - send_via: %s\n", cfg.Slack.SendVia)
	fmt.Fprintf(w, "  - ping_interval: %s\n", cfg.Slack.PingInterval)
	fmt.Fprintf(w, "  - max_message_bytes: %d\n", cfg.Slack.MaxMessageBytes)
	if cfg.Slack.Proxy != "" {
		fmt.Fprintf(w, "  - proxy: %s\n", cfg.Slack.Proxy)
	}
	fmt.Fprintf(w, "\nRobot: %s (@%s)\n", cfg.Robot.Name, cfg.Robot.MentionName)
	fmt.Fprintf(w, "Store: %s %s\n", cfg.Store.Driver, cfg.Store.Path)
	if cfg.SQS.Enabled {
		fmt.Fprintf(w, "SQS relay: %s (%s)\n", cfg.SQS.QueueName, cfg.SQS.Region)
	}
	fmt.Fprintln(w)
}

func outputValidationResult(w io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(w, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(w, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ Configuration is valid")
		fmt.Fprintf(w, "  - Config: %s\n", result.Config)
		fmt.Fprintf(w, "  - Send via: %s\n", result.SendVia)
		fmt.Fprintf(w, "  - Store: %s\n", result.Store)
		fmt.Fprintf(w, "  - SQS relay: %v\n", result.SQS)
		if len(result.Warnings) > 0 {
			fmt.Fprintln(w, "\n⚠️  Warnings:")
			for _, warning := range result.Warnings {
				fmt.Fprintf(w, "  - %s\n", warning)
			}
		}
		return
	}

	fmt.Fprintln(w, "❌ Configuration validation failed:")
	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", errMsg)
		}
	}
}

// validateConfigDetails reports settings that load but are probably mistakes
func validateConfigDetails(cfg *core.Config) []string {
	var warnings []string

	if !cfg.Security.WhitelistEnabled {
		warnings = append(warnings, "Whitelist is disabled - every Slack user can command the robot")
	}
	if cfg.Store.Driver == "memory" {
		warnings = append(warnings, "Store driver is memory - users and rooms are lost on restart")
	}
	if cfg.SQS.Enabled && cfg.SQS.RobotID == "" {
		warnings = append(warnings, "SQS relay has no robot_id - the robot may receive its own messages")
	}
	if cfg.Robot.Echo {
		warnings = append(warnings, "Echo is enabled - every message in every joined room is repeated")
	}
	if cfg.Slack.SendVia == slack.SendViaWeb && !cfg.Slack.LinkNames {
		warnings = append(warnings, "send_via is web without link_names - @name mentions in replies are not linked")
	}

	return warnings
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show full configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}

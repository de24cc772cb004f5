package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slackline",
	Short: "slackline is a Slack adapter for a small chat robot",
	Long: `slackline connects a chat robot to Slack through the real-time
messaging stream and the Web API. It keeps users and rooms in sync, turns
Slack markup into plain text and sends replies back as stream frames or
Web API posts.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

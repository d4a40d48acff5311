// Command nodeverify captures a baseline of node telemetry before a rollout
// and reports which nodes advanced afterwards.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFiles   []string
	logMode    string
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:           "nodeverify",
		Short:         "Verify that field nodes resumed reporting after a software rollout",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the JSON config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the config")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "log mode: development or production (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(serveCmd, baselineCmd, compareCmd, totalsCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package cmd implements the command line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/whit3rabbit/luamixer/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile string         // Variable to hold the config file path from the flag
	cfg     *config.Config // Global variable to hold the loaded configuration

	// Flag variables mapped to config fields for override
	silentMode       bool // -> cfg.Silent
	abortOnError     bool // -> cfg.AbortOnError
	obfuscateStrings bool // -> cfg.ObfuscateStringLiteral
	renameVariables  bool // -> cfg.ObfuscateVariableName
	renameLabels     bool // -> cfg.ObfuscateLabelName
	controlFlow      bool // -> cfg.ObfuscateControlFlow
	deadCode         bool // -> cfg.InjectDeadCode
	obfuscateNumbers bool // -> cfg.ObfuscateNumberLiterals
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "go-lua-obfuscator",
	Short: "A CLI tool to obfuscate Lua code.",
	Long: `go-lua-obfuscator provides various techniques to make Lua code
harder to understand and reverse-engineer.`,
	// PersistentPreRunE runs before any subcommand's RunE.
	// Use this to load configuration early.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil { // Only load config once
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			cfg = loadedCfg

			// Apply command-line flag overrides after loading config file
			applyFlagOverrides(cfg, cmd)
		}
		return nil
	},
	// Run: Executes if no subcommand is given. Print help.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// applyFlagOverrides applies command-line flag values to the config struct.
// Only overrides if the flag was explicitly set by the user.
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("abort-on-error") {
		cfg.AbortOnError = abortOnError
	}
	if cmd.Flags().Changed("obfuscate-strings") {
		cfg.ObfuscateStringLiteral = obfuscateStrings
	}
	if cmd.Flags().Changed("rename-variables") {
		cfg.ObfuscateVariableName = renameVariables
	}
	if cmd.Flags().Changed("rename-labels") {
		cfg.ObfuscateLabelName = renameLabels
	}
	if cmd.Flags().Changed("control-flow") {
		cfg.ObfuscateControlFlow = controlFlow
	}
	if cmd.Flags().Changed("dead-code") {
		cfg.InjectDeadCode = deadCode
	}
	if cmd.Flags().Changed("obfuscate-numbers") {
		cfg.ObfuscateNumberLiterals = obfuscateNumbers
	}
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		// Cobra usually prints the error. We just need to exit non-zero.
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&abortOnError, "abort-on-error", true, "Stop processing on the first error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&obfuscateStrings, "obfuscate-strings", true, "Enable/disable string obfuscation (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&renameVariables, "rename-variables", true, "Enable/disable local variable renaming (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&renameLabels, "rename-labels", true, "Enable/disable goto label renaming (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&controlFlow, "control-flow", false, "Enable/disable control flow obfuscation (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&deadCode, "dead-code", false, "Enable/disable dead code injection (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&obfuscateNumbers, "obfuscate-numbers", false, "Enable/disable number literal obfuscation (overrides config)")
}

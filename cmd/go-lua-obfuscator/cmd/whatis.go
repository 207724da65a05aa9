package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/internal/obfuscator"
	"github.com/whit3rabbit/luamixer/internal/scrambler"
)

var (
	whatisTargetDir string
	whatisType      string
)

// whatisCmd represents the whatis command
var whatisCmd = &cobra.Command{
	Use:   "whatis <scrambled_name>",
	Short: "Looks up the original name for a given scrambled name",
	Long: `Loads the saved obfuscation context from a previous run's target
directory and attempts to find the original identifier corresponding to
the provided scrambled name.

You must specify the target directory where the context was saved using
--target-dir (-t). You can optionally specify the type of identifier
(--type) to narrow the search.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if whatisTargetDir == "" {
			return fmt.Errorf("--target-dir (-t) flag is required")
		}
		info, err := os.Stat(whatisTargetDir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("target directory '%s' not found", whatisTargetDir)
			}
			return fmt.Errorf("error checking target directory '%s': %w", whatisTargetDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("target path '%s' is not a directory", whatisTargetDir)
		}
		if whatisType != "" {
			if _, err := scrambler.ParseScrambleType(whatisType); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		scrambledName := args[0]
		cmd.SilenceUsage = true

		// The context structure only needs defaults to initialize.
		defaultCfg, err := config.LoadConfig("")
		if err != nil {
			return fmt.Errorf("failed to load default config for context init: %w", err)
		}

		octx, err := obfuscator.NewObfuscationContext(defaultCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context structure: %w", err)
		}
		if err := octx.Load(whatisTargetDir); err != nil {
			return fmt.Errorf("error loading obfuscation context from %s: %w", whatisTargetDir, err)
		}

		typesToCheck := make(map[scrambler.ScrambleType]bool)
		if whatisType != "" {
			sType, _ := scrambler.ParseScrambleType(whatisType)
			typesToCheck[sType] = true
		} else {
			for sType := range octx.Scramblers {
				typesToCheck[sType] = true
			}
		}

		found := false
		for sType := range typesToCheck {
			s, exists := octx.Scramblers[sType]
			if !exists || s == nil {
				continue
			}
			originalName, ok := s.Unscramble(scrambledName)
			if ok {
				fmt.Printf("Found: '%s' (Type: %s)\n", originalName, sType)
				found = true
				break
			}
		}

		if !found {
			fmt.Fprintf(os.Stderr, "Error: Scrambled name '%s' not found in the loaded context.\n", scrambledName)
			return fmt.Errorf("name not found")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whatisCmd)
	whatisCmd.Flags().StringVarP(&whatisTargetDir, "target-dir", "t", "", "Target directory of a previous obfuscate run (required)")
	whatisCmd.Flags().StringVar(&whatisType, "type", "", "Specific identifier type (variable, label)")
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/luamixer/internal/obfuscator"
)

var outputFile string // Flag variable for output file path

// fileCmd represents the obfuscate file command
var fileCmd = &cobra.Command{
	Use:   "file <lua_file_path>",
	Short: "Obfuscate a single Lua file",
	Long: `Reads a single Lua file, applies the configured obfuscation
techniques, and outputs the result to stdout or a specified file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true
		filePath := args[0]
		targetFile := outputFile

		// Single file runs use a fresh context and do not load/save state.
		octx, errCtx := obfuscator.NewObfuscationContext(cfg)
		if errCtx != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", errCtx)
		}

		if !cfg.Silent {
			fmt.Printf("Processing file: %s\n", filePath)
		}
		outputContent, err := obfuscator.ProcessFile(filePath, octx)
		if err != nil {
			return fmt.Errorf("error processing file %s: %w", filePath, err)
		}

		if targetFile != "" {
			if !cfg.Silent {
				fmt.Printf("Info: Writing output to file: %s\n", targetFile)
			}
			err = os.WriteFile(targetFile, []byte(outputContent), 0644)
			if err != nil {
				return fmt.Errorf("error writing to output file %s: %w", targetFile, err)
			}
		} else {
			fmt.Print(outputContent)
		}
		return nil
	},
}

func init() {
	obfuscateCmd.AddCommand(fileCmd)
	fileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
}

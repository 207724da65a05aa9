package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/luamixer/internal/obfuscator"
)

var (
	dirOutput string
	dirClean  bool
)

// dirCmd represents the obfuscate dir command
var dirCmd = &cobra.Command{
	Use:   "dir <source_directory>",
	Short: "Obfuscate all Lua files in a directory tree",
	Long: `Walks a directory tree, obfuscating every Lua file into a mirror
tree under the output directory. Non-Lua files are copied through
unchanged. Scrambler state is saved alongside the output so the whatis
command can reverse lookups later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		sourceDir := filepath.Clean(args[0])
		targetDir := dirOutput
		if targetDir == "" {
			targetDir = cfg.TargetDirectory
		}
		if targetDir == "" || targetDir == "." {
			return fmt.Errorf("an output directory is required (use --output or target_directory in config)")
		}
		targetDir = filepath.Clean(targetDir)

		info, err := os.Stat(sourceDir)
		if err != nil {
			return fmt.Errorf("error reading source directory %s: %w", sourceDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("source path %s is not a directory", sourceDir)
		}

		if dirClean {
			if !cfg.Silent {
				fmt.Printf("Info: Removing existing output directory %s\n", targetDir)
			}
			if err := os.RemoveAll(targetDir); err != nil {
				return fmt.Errorf("error cleaning output directory %s: %w", targetDir, err)
			}
		}

		octx, err := obfuscator.NewObfuscationContext(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize obfuscation context: %w", err)
		}
		// Resume name mappings from a previous run over the same target.
		if err := octx.Load(targetDir); err != nil {
			return fmt.Errorf("error loading obfuscation context: %w", err)
		}

		processed, copied := 0, 0
		walkErr := filepath.Walk(sourceDir, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(sourceDir, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			if skipPath(rel, fi) {
				if fi.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			dest := filepath.Join(targetDir, rel)
			if fi.IsDir() {
				if depth := strings.Count(rel, string(filepath.Separator)); depth > cfg.MaxNestedDirectoryLevel {
					return filepath.SkipDir
				}
				return os.MkdirAll(dest, 0755)
			}
			if !fi.Mode().IsRegular() {
				if fi.Mode()&os.ModeSymlink != 0 && !cfg.FollowSymlinks {
					return nil
				}
				return nil
			}

			if isLuaFile(rel) && !keepPath(rel) {
				out, perr := obfuscator.ProcessFile(path, octx)
				if perr != nil {
					if cfg.AbortOnError {
						return perr
					}
					fmt.Fprintf(os.Stderr, "Warning: %v (copying original)\n", perr)
					copied++
					return copyFile(path, dest)
				}
				processed++
				if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
					return err
				}
				return os.WriteFile(dest, []byte(out), 0644)
			}
			copied++
			return copyFile(path, dest)
		})
		if walkErr != nil {
			return fmt.Errorf("error processing directory %s: %w", sourceDir, walkErr)
		}

		if err := octx.Save(targetDir); err != nil {
			return fmt.Errorf("error saving obfuscation context: %w", err)
		}
		if !cfg.Silent {
			fmt.Printf("Done: %d file(s) obfuscated, %d copied.\n", processed, copied)
		}
		return nil
	},
}

func isLuaFile(rel string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(rel)), ".")
	for _, e := range cfg.ObfuscateLuaExtensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

func skipPath(rel string, fi os.FileInfo) bool {
	return matchAny(cfg.SkipPaths, rel, fi)
}

func keepPath(rel string) bool {
	return matchAny(cfg.KeepPaths, rel, nil)
}

func matchAny(patterns []string, rel string, fi os.FileInfo) bool {
	slashRel := filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, slashRel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func init() {
	obfuscateCmd.AddCommand(dirCmd)
	dirCmd.Flags().StringVarP(&dirOutput, "output", "o", "", "Output directory (required unless set in config)")
	dirCmd.Flags().BoolVar(&dirClean, "clean", false, "Remove the output directory before processing")
}

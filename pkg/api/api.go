// Package api provides the public API for using the Lua obfuscator as a
// library.
//
// This package allows users to obfuscate Lua code programmatically using
// the same techniques available in the command-line interface. The API
// provides methods for obfuscating Lua code strings, files, and
// directories.
//
// Basic usage example:
//
//	obf, err := api.NewObfuscator(api.Options{ConfigPath: "config.yaml"})
//	if err != nil {
//	    log.Fatalf("Failed to create obfuscator: %v", err)
//	}
//
//	result, err := obf.ObfuscateCode(`print("Hello World")`)
//	if err != nil {
//	    log.Fatalf("Failed to obfuscate code: %v", err)
//	}
//
//	fmt.Println(result) // Prints obfuscated Lua code
package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/internal/obfuscator"
	"github.com/whit3rabbit/luamixer/internal/scrambler"
)

// PrintInfo prints formatted information to stdout, respecting the
// Testing flag. This function forwards to the internal config.PrintInfo.
func PrintInfo(format string, args ...interface{}) {
	config.PrintInfo(format, args...)
}

// Obfuscator represents the main obfuscation engine.
// It encapsulates the configuration and context needed for obfuscation
// operations.
type Obfuscator struct {
	// Context holds the obfuscation context including scramblers and state
	Context *obfuscator.ObfuscationContext
	// Config holds the configuration settings for obfuscation
	Config *config.Config
}

// Options represents configuration options for creating a new Obfuscator
// instance.
type Options struct {
	// ConfigPath is the path to a YAML configuration file.
	// If empty, default configuration will be used.
	ConfigPath string

	// Silent suppresses informational messages during obfuscation.
	Silent bool
}

// NewObfuscator creates a new Obfuscator instance using the provided
// options.
func NewObfuscator(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if options.Silent {
		cfg.Silent = true
	}

	octx, err := obfuscator.NewObfuscationContext(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create obfuscation context: %w", err)
	}

	return &Obfuscator{
		Context: octx,
		Config:  cfg,
	}, nil
}

// ObfuscateCode obfuscates a string of Lua code and returns the result.
func (o *Obfuscator) ObfuscateCode(code string) (string, error) {
	result, err := obfuscator.ProcessSource(code, "input.lua", o.Context)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate code: %w", err)
	}
	return result, nil
}

// ObfuscateFile obfuscates a Lua file and returns the obfuscated code.
func (o *Obfuscator) ObfuscateFile(filePath string) (string, error) {
	result, err := obfuscator.ProcessFile(filePath, o.Context)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate file %s: %w", filePath, err)
	}
	return result, nil
}

// ObfuscateFileToFile obfuscates a Lua file and writes the result to
// another file.
func (o *Obfuscator) ObfuscateFileToFile(inputPath, outputPath string) error {
	result, err := o.ObfuscateFile(inputPath)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(result), 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", outputPath, err)
	}
	return nil
}

// ObfuscateDirectory obfuscates all Lua files in a directory tree,
// mirroring the structure into outputDir. Non-Lua files are copied
// unchanged.
func (o *Obfuscator) ObfuscateDirectory(inputDir, outputDir string) error {
	info, err := os.Stat(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read input directory %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path %s is not a directory", inputDir)
	}
	return filepath.Walk(inputDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dest := filepath.Join(outputDir, rel)
		if fi.IsDir() {
			return os.MkdirAll(dest, 0755)
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if o.isLuaFile(rel) {
			return o.ObfuscateFileToFile(path, dest)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		return os.WriteFile(dest, data, fi.Mode().Perm())
	})
}

func (o *Obfuscator) isLuaFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, e := range o.Config.ObfuscateLuaExtensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// LoadContext loads previously saved scrambler state from baseDir.
func (o *Obfuscator) LoadContext(baseDir string) error {
	return o.Context.Load(baseDir)
}

// SaveContext persists the scrambler state under baseDir.
func (o *Obfuscator) SaveContext(baseDir string) error {
	return o.Context.Save(baseDir)
}

// LookupObfuscatedName returns the obfuscated form of an original name,
// searching the scrambler for the given identifier type.
func (o *Obfuscator) LookupObfuscatedName(name string, typeStr string) (string, error) {
	sType, err := scrambler.ParseScrambleType(typeStr)
	if err != nil {
		return "", err
	}
	s := o.Context.GetScrambler(sType)
	if s == nil {
		return "", fmt.Errorf("no scrambler for type %s", sType)
	}
	obfuscated, found := s.LookupObfuscated(name)
	if !found {
		return "", fmt.Errorf("name %q not found in %s mappings", name, sType)
	}
	return obfuscated, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Constants for string obfuscation techniques
const (
	StringObfuscationTechniqueEscape = "escape"
	StringObfuscationTechniqueXOR    = "xor"
)

// --- Nested Configuration Structs ---

// StringsConfig defines settings for string literal obfuscation
type StringsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Technique string `yaml:"technique" mapstructure:"technique"`
	XorKey    string `yaml:"xor_key,omitempty" mapstructure:"xor_key,omitempty"`
}

// ScramblingConfig defines settings for name scrambling
type ScramblingConfig struct {
	Mode   string `yaml:"mode" mapstructure:"mode"`
	Length int    `yaml:"length" mapstructure:"length"`
}

// NameToggleConfig defines settings for toggling name scrambling
type NameToggleConfig struct {
	Scramble bool `yaml:"scramble" mapstructure:"scramble"`
}

// ControlFlowConfig defines settings for control flow obfuscation
type ControlFlowConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	MaxNestingDepth int  `yaml:"max_nesting_depth" mapstructure:"max_nesting_depth"`
	AddDeadBranches bool `yaml:"add_dead_branches" mapstructure:"add_dead_branches"`
}

// NumbersConfig defines settings for number literal obfuscation
type NumbersConfig struct {
	Enabled            bool `yaml:"enabled" mapstructure:"enabled"`
	ComplexityLevel    int  `yaml:"complexity_level" mapstructure:"complexity_level"`
	TransformationRate int  `yaml:"transformation_rate" mapstructure:"transformation_rate"`
}

// CodeInjectionConfig defines settings for dead code injection
type CodeInjectionConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	InjectionRate     int  `yaml:"injection_rate" mapstructure:"injection_rate"`
	MaxInjectionDepth int  `yaml:"max_injection_depth" mapstructure:"max_injection_depth"`
}

// IgnoreConfig defines lists of names to leave untouched
type IgnoreConfig struct {
	Variables []string `yaml:"variables" mapstructure:"variables"`
	Labels    []string `yaml:"labels" mapstructure:"labels"`
}

// ObfuscationConfig holds all obfuscation-specific settings
type ObfuscationConfig struct {
	Strings     StringsConfig       `yaml:"strings" mapstructure:"strings"`
	Scrambling  ScramblingConfig    `yaml:"scrambling" mapstructure:"scrambling"`
	Variables   NameToggleConfig    `yaml:"variables" mapstructure:"variables"`
	Labels      NameToggleConfig    `yaml:"labels" mapstructure:"labels"`
	ControlFlow ControlFlowConfig   `yaml:"control_flow" mapstructure:"control_flow"`
	Numbers     NumbersConfig       `yaml:"numbers" mapstructure:"numbers"`
	DeadCode    CodeInjectionConfig `yaml:"dead_code" mapstructure:"dead_code"`
	Ignore      IgnoreConfig        `yaml:"ignore" mapstructure:"ignore"`
}

// Config holds all configuration settings for the obfuscator.
// Struct tags control how Viper maps config file keys and environment variables.
type Config struct {
	// Input/Output settings
	SourceDirectory string `mapstructure:"source_directory"`
	TargetDirectory string `mapstructure:"target_directory"`

	// General behavior
	Silent         bool `mapstructure:"silent"`          // Suppress informational messages
	AbortOnError   bool `mapstructure:"abort_on_error"`  // Stop processing on the first error
	FollowSymlinks bool `mapstructure:"follow_symlinks"` // Whether to follow symbolic links during directory processing
	DebugMode      bool `mapstructure:"debug_mode"`      // Enable verbose debug logging

	// File Handling
	ObfuscateLuaExtensions []string `mapstructure:"obfuscateluaextensions"` // File extensions to treat as Lua
	SkipPaths              []string `mapstructure:"skip"`                   // Paths or directories to completely ignore
	KeepPaths              []string `mapstructure:"keep"`                   // Paths or directories to copy without obfuscating

	// Nested configuration, preferred in config files
	Obfuscation ObfuscationConfig `mapstructure:"obfuscation" yaml:"obfuscation"`

	// Scrambling Options
	ScrambleMode   string `mapstructure:"scramble_mode"`   // 'identifier', 'hexa', 'numeric'
	ScrambleLength int    `mapstructure:"scramble_length"` // Target length for scrambled names

	// Obfuscation Feature Toggles
	ObfuscateStringLiteral     bool   `mapstructure:"obfuscate_string_literal"`
	StringObfuscationTechnique string `mapstructure:"string_obfuscation_technique"` // 'escape' or 'xor'
	StringXorKey               string `mapstructure:"string_xor_key"`
	ObfuscateVariableName      bool   `mapstructure:"obfuscate_variable_name"`
	ObfuscateLabelName         bool   `mapstructure:"obfuscate_label_name"`
	ObfuscateControlFlow       bool   `mapstructure:"obfuscate_control_flow"`         // Wrap blocks in if true then ... end
	ControlFlowMaxNestingDepth int    `mapstructure:"control_flow_max_nesting_depth"` // Maximum depth for nested control flow wrapping
	ControlFlowAddDeadBranches bool   `mapstructure:"control_flow_add_dead_branches"` // Whether to add bogus else branches

	// Number Literal Obfuscation
	ObfuscateNumberLiterals  bool `mapstructure:"obfuscate_number_literals"`
	NumberComplexityLevel    int  `mapstructure:"number_complexity_level"`    // Complexity level (1-3)
	NumberTransformationRate int  `mapstructure:"number_transformation_rate"` // Percentage of eligible literals to transform (0-100)

	// Dead Code Injection
	InjectDeadCode        bool `mapstructure:"inject_dead_code"`         // Whether to inject unreachable blocks
	DeadCodeInjectionRate int  `mapstructure:"dead_code_injection_rate"` // Percentage chance to inject at each opportunity (0-100)
	MaxInjectionDepth     int  `mapstructure:"max_injection_depth"`      // Maximum block depth for injection

	// Ignore Lists (names NOT to rename)
	IgnoreVariables       []string `mapstructure:"ignore_variables"`
	IgnoreLabels          []string `mapstructure:"ignore_labels"`
	IgnoreVariablesPrefix []string `mapstructure:"ignore_variables_prefix"`
	IgnoreLabelsPrefix    []string `mapstructure:"ignore_labels_prefix"`

	MaxNestedDirectoryLevel int `mapstructure:"max_nested_directory"` // Protection against symlink loops
}

// Default values for the configuration.
// Viper requires keys to be lowercase for automatic env var binding.
var defaults = map[string]interface{}{
	"silent":                       false,
	"abortonerror":                 true,
	"followsymlinks":               false,
	"obfuscateluaextensions":       []string{"lua"},
	"skip":                         nil,
	"keep":                         nil,
	"scramblemode":                 "identifier",
	"scramblelength":               5,
	"obfuscatestringliteral":       true,
	"stringobfuscationtechnique":   StringObfuscationTechniqueXOR,
	"stringxorkey":                 "",
	"obfuscatevariablename":        true,
	"obfuscatelabelname":           true,
	"obfuscatecontrolflow":         false,
	"controlflowmaxnestingdepth":   1,
	"controlflowadddeadbranches":   false,
	"obfuscatenumberliterals":      false,
	"numbercomplexitylevel":        1,
	"numbertransformationrate":     80,
	"injectdeadcode":               false,
	"deadcodeinjectionrate":        30,
	"maxinjectiondepth":            3,
	"ignorevariables":              nil,
	"ignorelabels":                 nil,
	"ignorevariablesprefix":        nil,
	"ignorelabelsprefix":           nil,
	"maxnesteddirectorylevel":      99,
	"sourcedirectory":              "",
	"targetdirectory":              "",
	"debugmode":                    false,
}

var (
	// Testing controls whether output is suppressed for testing purposes
	Testing bool
)

// PrintInfo prints informational output unless suppressed for tests.
func PrintInfo(format string, args ...interface{}) {
	if !Testing {
		fmt.Printf(format, args...)
	}
}

// LoadConfig reads configuration from file and environment variables,
// then returns a filled Config struct.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = "config.yaml" // Default path
	}

	if _, err := os.Stat(configPath); err == nil {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}

		err = yaml.Unmarshal(yamlFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("error unmarshalling config file %s: %w", configPath, err)
		}
		if !cfg.Silent {
			PrintInfo("Info: Loaded configuration from %s\n", configPath)
		}
	} else if os.IsNotExist(err) {
		if configPath != "config.yaml" {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
		PrintInfo("Info: Configuration file 'config.yaml' not found, using default settings.\n")
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	cfg.ApplyNested()
	cfg.TargetDirectory = filepath.Clean(cfg.TargetDirectory)
	return cfg, nil
}

// LoadConfigViper builds the configuration through viper so LUAMIX_*
// environment variables can override file values.
func LoadConfigViper(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("LUAMIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		bindEnv(v, key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
	}

	mapNestedToFlatConfig(v)

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}
	cfg.TargetDirectory = filepath.Clean(cfg.TargetDirectory)
	return cfg, nil
}

// SaveConfig saves the default configuration to a file.
func SaveConfig(configPath string) error {
	cfg := DefaultConfig()
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshalling default config: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
	}
	err = os.WriteFile(configPath, yamlData, 0644)
	if err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	PrintInfo("Info: Saved default configuration to %s\n", configPath)
	return nil
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		Silent:                     false,
		AbortOnError:               true,
		DebugMode:                  false,
		SkipPaths:                  []string{"*.git*", "*.svn*", "*.bak"},
		KeepPaths:                  []string{},
		ObfuscateLuaExtensions:     []string{"lua"},
		FollowSymlinks:             false,
		TargetDirectory:            "", // Set via CLI
		ScrambleMode:               "identifier",
		ScrambleLength:             5,
		ObfuscateStringLiteral:     true,
		StringObfuscationTechnique: StringObfuscationTechniqueXOR,
		ObfuscateVariableName:      true,
		ObfuscateLabelName:         true,
		ObfuscateControlFlow:       false,
		ControlFlowMaxNestingDepth: 1,
		ObfuscateNumberLiterals:    false,
		NumberComplexityLevel:      1,
		NumberTransformationRate:   80,
		InjectDeadCode:             false,
		DeadCodeInjectionRate:      30,
		MaxInjectionDepth:          3,
		MaxNestedDirectoryLevel:    99,

		Obfuscation: ObfuscationConfig{
			Strings: StringsConfig{
				Enabled:   true,
				Technique: StringObfuscationTechniqueXOR,
			},
			Scrambling: ScramblingConfig{
				Mode:   "identifier",
				Length: 5,
			},
			Variables: NameToggleConfig{Scramble: true},
			Labels:    NameToggleConfig{Scramble: true},
			ControlFlow: ControlFlowConfig{
				Enabled:         false,
				MaxNestingDepth: 1,
				AddDeadBranches: false,
			},
			Numbers: NumbersConfig{
				Enabled:            false,
				ComplexityLevel:    1,
				TransformationRate: 80,
			},
			DeadCode: CodeInjectionConfig{
				Enabled:           false,
				InjectionRate:     30,
				MaxInjectionDepth: 3,
			},
			Ignore: IgnoreConfig{
				Variables: []string{},
				Labels:    []string{},
			},
		},
	}
}

// ApplyNested copies the nested Obfuscation section over the flat fields.
// Nested values win when a file sets both forms.
func (c *Config) ApplyNested() {
	o := &c.Obfuscation
	c.ObfuscateStringLiteral = o.Strings.Enabled
	if o.Strings.Technique != "" {
		c.StringObfuscationTechnique = o.Strings.Technique
	}
	if o.Strings.XorKey != "" {
		c.StringXorKey = o.Strings.XorKey
	}
	if o.Scrambling.Mode != "" {
		c.ScrambleMode = o.Scrambling.Mode
	}
	if o.Scrambling.Length > 0 {
		c.ScrambleLength = o.Scrambling.Length
	}
	c.ObfuscateVariableName = o.Variables.Scramble
	c.ObfuscateLabelName = o.Labels.Scramble
	c.ObfuscateControlFlow = o.ControlFlow.Enabled
	if o.ControlFlow.MaxNestingDepth > 0 {
		c.ControlFlowMaxNestingDepth = o.ControlFlow.MaxNestingDepth
	}
	c.ControlFlowAddDeadBranches = o.ControlFlow.AddDeadBranches
	c.ObfuscateNumberLiterals = o.Numbers.Enabled
	if o.Numbers.ComplexityLevel > 0 {
		c.NumberComplexityLevel = o.Numbers.ComplexityLevel
	}
	if o.Numbers.TransformationRate > 0 {
		c.NumberTransformationRate = o.Numbers.TransformationRate
	}
	c.InjectDeadCode = o.DeadCode.Enabled
	if o.DeadCode.InjectionRate > 0 {
		c.DeadCodeInjectionRate = o.DeadCode.InjectionRate
	}
	if o.DeadCode.MaxInjectionDepth > 0 {
		c.MaxInjectionDepth = o.DeadCode.MaxInjectionDepth
	}
	if len(o.Ignore.Variables) > 0 {
		c.IgnoreVariables = append(c.IgnoreVariables, o.Ignore.Variables...)
	}
	if len(o.Ignore.Labels) > 0 {
		c.IgnoreLabels = append(c.IgnoreLabels, o.Ignore.Labels...)
	}
}

// Helper to explicitly bind environment variables, handling potential key mismatches
func bindEnv(v *viper.Viper, key string) {
	envKey := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	_ = v.BindEnv(key, "LUAMIX_"+envKey)
}

// mapNestedToFlatConfig maps values from the nested configuration structure
// to the flat structure used by the passes.
func mapNestedToFlatConfig(v *viper.Viper) {
	if !v.IsSet("obfuscation") {
		return
	}
	if v.IsSet("obfuscation.strings.enabled") {
		v.Set("obfuscate_string_literal", v.GetBool("obfuscation.strings.enabled"))
	}
	if v.IsSet("obfuscation.strings.technique") {
		v.Set("string_obfuscation_technique", v.GetString("obfuscation.strings.technique"))
	}
	if v.IsSet("obfuscation.strings.xor_key") {
		v.Set("string_xor_key", v.GetString("obfuscation.strings.xor_key"))
	}
	if v.IsSet("obfuscation.scrambling.mode") {
		v.Set("scramble_mode", v.GetString("obfuscation.scrambling.mode"))
	}
	if v.IsSet("obfuscation.scrambling.length") {
		v.Set("scramble_length", v.GetInt("obfuscation.scrambling.length"))
	}
	if v.IsSet("obfuscation.variables.scramble") {
		v.Set("obfuscate_variable_name", v.GetBool("obfuscation.variables.scramble"))
	}
	if v.IsSet("obfuscation.labels.scramble") {
		v.Set("obfuscate_label_name", v.GetBool("obfuscation.labels.scramble"))
	}
	if v.IsSet("obfuscation.control_flow.enabled") {
		v.Set("obfuscate_control_flow", v.GetBool("obfuscation.control_flow.enabled"))
	}
	if v.IsSet("obfuscation.control_flow.max_nesting_depth") {
		v.Set("control_flow_max_nesting_depth", v.GetInt("obfuscation.control_flow.max_nesting_depth"))
	}
	if v.IsSet("obfuscation.control_flow.add_dead_branches") {
		v.Set("control_flow_add_dead_branches", v.GetBool("obfuscation.control_flow.add_dead_branches"))
	}
	if v.IsSet("obfuscation.numbers.enabled") {
		v.Set("obfuscate_number_literals", v.GetBool("obfuscation.numbers.enabled"))
	}
	if v.IsSet("obfuscation.numbers.complexity_level") {
		v.Set("number_complexity_level", v.GetInt("obfuscation.numbers.complexity_level"))
	}
	if v.IsSet("obfuscation.numbers.transformation_rate") {
		v.Set("number_transformation_rate", v.GetInt("obfuscation.numbers.transformation_rate"))
	}
	if v.IsSet("obfuscation.dead_code.enabled") {
		v.Set("inject_dead_code", v.GetBool("obfuscation.dead_code.enabled"))
	}
	if v.IsSet("obfuscation.dead_code.injection_rate") {
		v.Set("dead_code_injection_rate", v.GetInt("obfuscation.dead_code.injection_rate"))
	}
	if v.IsSet("obfuscation.dead_code.max_injection_depth") {
		v.Set("max_injection_depth", v.GetInt("obfuscation.dead_code.max_injection_depth"))
	}
	if v.IsSet("obfuscation.ignore.variables") {
		v.Set("ignore_variables", v.GetStringSlice("obfuscation.ignore.variables"))
	}
	if v.IsSet("obfuscation.ignore.labels") {
		v.Set("ignore_labels", v.GetStringSlice("obfuscation.ignore.labels"))
	}
}

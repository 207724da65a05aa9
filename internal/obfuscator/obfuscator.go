// Package obfuscator orchestrates the overall process and holds shared context.
package obfuscator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/whit3rabbit/luamixer/internal/ast"
	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/internal/parser"
	"github.com/whit3rabbit/luamixer/internal/printer"
	"github.com/whit3rabbit/luamixer/internal/scrambler"
	"github.com/whit3rabbit/luamixer/internal/transformer"
)

// ObfuscationContext holds the shared state needed across multiple
// files and passes, primarily the name scramblers.
type ObfuscationContext struct {
	Config     *config.Config
	Scramblers map[scrambler.ScrambleType]*scrambler.Scrambler
	Silent     bool // Inherited from config for convenience
}

// NewObfuscationContext creates a new context and initializes scramblers
// based on config.
func NewObfuscationContext(cfg *config.Config) (*ObfuscationContext, error) {
	octx := &ObfuscationContext{
		Config:     cfg,
		Scramblers: make(map[scrambler.ScrambleType]*scrambler.Scrambler),
		Silent:     cfg.Silent,
	}

	for _, sType := range scrambler.AllScrambleTypes {
		s, err := scrambler.NewScrambler(sType, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize scrambler for type %s: %w", sType, err)
		}
		octx.Scramblers[sType] = s
	}

	return octx, nil
}

// GetConfig returns the configuration associated with this context.
func (octx *ObfuscationContext) GetConfig() *config.Config {
	return octx.Config
}

// GetScrambler returns the scrambler for the given identifier category.
func (octx *ObfuscationContext) GetScrambler(sType scrambler.ScrambleType) *scrambler.Scrambler {
	return octx.Scramblers[sType]
}

// ContextFilePath returns the expected path for a scrambler's context file.
func (octx *ObfuscationContext) ContextFilePath(baseDir string, sType scrambler.ScrambleType) string {
	return filepath.Join(baseDir, "context", string(sType)+".scramble")
}

// Load loads the state for all scramblers from the specified base
// directory. Missing context files are not an error.
func (octx *ObfuscationContext) Load(baseDir string) error {
	if !octx.Silent {
		config.PrintInfo("Info: Attempting to load obfuscation context...\n")
	}
	for sType, s := range octx.Scramblers {
		path := octx.ContextFilePath(baseDir, sType)
		if err := s.LoadState(path); err != nil {
			return fmt.Errorf("failed to load %s context: %w", sType, err)
		}
	}
	return nil
}

// Save persists the state of all scramblers under the specified base
// directory.
func (octx *ObfuscationContext) Save(baseDir string) error {
	contextDir := filepath.Join(baseDir, "context")
	if err := os.MkdirAll(contextDir, 0755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}
	for sType, s := range octx.Scramblers {
		path := octx.ContextFilePath(baseDir, sType)
		if err := s.SaveState(path); err != nil {
			return fmt.Errorf("failed to save %s context: %w", sType, err)
		}
	}
	if !octx.Silent {
		config.PrintInfo("Info: Saved obfuscation context to %s\n", contextDir)
	}
	return nil
}

// ProcessSource obfuscates one Lua source text. The name is used in
// error messages and syntax error positions. Passes run in a fixed
// order: string encoding first so its decoder is spliced before
// structural passes reshape the tree, renaming last so every binding
// minted by earlier passes gets a generated name too.
func ProcessSource(src, name string, octx *ObfuscationContext) (out string, err error) {
	cfg := octx.GetConfig()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error while obfuscating %s: %v", name, r)
		}
	}()

	chunk, err := parser.Parse(src, name)
	if err != nil {
		return "", fmt.Errorf("parsing failed for %s: %w", name, err)
	}

	if cfg.ObfuscateStringLiteral {
		technique := cfg.StringObfuscationTechnique
		if technique == "" {
			technique = config.StringObfuscationTechniqueXOR
		}
		pass := transformer.NewStringObfuscator(technique, cfg.StringXorKey)
		if err := pass.Apply(chunk); err != nil {
			return "", fmt.Errorf("string obfuscation failed for %s: %w", name, err)
		}
		if !octx.Silent {
			config.PrintInfo("String obfuscation pass applied (%s)\n", technique)
		}
	}

	if cfg.ObfuscateControlFlow {
		pass := transformer.NewControlFlowObfuscator(cfg.ControlFlowMaxNestingDepth, cfg.ControlFlowAddDeadBranches)
		if err := pass.Apply(chunk); err != nil {
			return "", fmt.Errorf("control flow obfuscation failed for %s: %w", name, err)
		}
		if !octx.Silent {
			config.PrintInfo("Control flow obfuscation pass applied\n")
		}
	}

	if cfg.InjectDeadCode {
		pass := transformer.NewDeadCodeInserter(cfg.DeadCodeInjectionRate, cfg.MaxInjectionDepth)
		if err := pass.Apply(chunk); err != nil {
			return "", fmt.Errorf("dead code injection failed for %s: %w", name, err)
		}
		if !octx.Silent {
			config.PrintInfo("Dead code injection pass applied\n")
		}
	}

	if cfg.ObfuscateNumberLiterals {
		pass := transformer.NewNumberObfuscator(cfg.NumberComplexityLevel, cfg.NumberTransformationRate)
		if err := pass.Apply(chunk); err != nil {
			return "", fmt.Errorf("number obfuscation failed for %s: %w", name, err)
		}
		if !octx.Silent {
			config.PrintInfo("Number obfuscation pass applied\n")
		}
	}

	if cfg.ObfuscateVariableName || cfg.ObfuscateLabelName {
		pass := transformer.NewVariableRenamer(
			octx.GetScrambler(scrambler.TypeVariable),
			octx.GetScrambler(scrambler.TypeLabel),
		)
		pass.RenameVariables = cfg.ObfuscateVariableName
		pass.RenameLabels = cfg.ObfuscateLabelName
		if err := pass.Apply(chunk); err != nil {
			return "", fmt.Errorf("rename pass failed for %s: %w", name, err)
		}
		if !octx.Silent {
			config.PrintInfo("Rename pass applied\n")
		}
	}

	return print(chunk, name)
}

// ProcessFile reads a Lua source file and returns its obfuscated form.
func ProcessFile(filePath string, octx *ObfuscationContext) (string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("error reading file %s: %w", filePath, err)
	}
	return ProcessSource(string(src), filePath, octx)
}

func print(chunk *ast.Chunk, name string) (string, error) {
	out, err := printer.Print(chunk)
	if err != nil {
		return "", fmt.Errorf("printing failed for %s: %w", name, err)
	}
	return out, nil
}

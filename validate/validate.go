// Command validate provides a small CLI that validates declarative grid
// description YAML files in a directory. It checks:
//   - YAML structure and required fields
//   - Duplicate object kind names and map characters
//   - Action behaviours referencing unregistered kinds
//   - Termination condition names and expressions being present
//   - Level row width consistency and unregistered map characters
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/griddy-sim/griddy/gdy"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateDescription loads and validates a single description YAML file.
func validateDescription(filePath string) ValidationResult {
	result := ValidationResult{File: filepath.Base(filePath), Valid: true}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
		return result
	}

	var desc gdy.Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("invalid YAML: %v", err))
		return result
	}

	if desc.Environment.Name == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "Environment.Name is required")
	}
	if len(desc.Environment.Levels) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "at least one level is required")
	}
	if len(desc.Objects) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "at least one object kind is required")
	}

	kinds := map[string]bool{}
	mapChars := map[string]string{}
	for _, obj := range desc.Objects {
		if obj.Name == "" {
			result.Valid = false
			result.Errors = append(result.Errors, "an object declares an empty Name")
			continue
		}
		if kinds[obj.Name] {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate object kind: %s", obj.Name))
		}
		kinds[obj.Name] = true

		if obj.MapCharacter != "" {
			if owner, exists := mapChars[obj.MapCharacter]; exists {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("map character %q reused by %s and %s", obj.MapCharacter, owner, obj.Name))
			}
			mapChars[obj.MapCharacter] = obj.Name
		}
	}

	for _, action := range desc.Actions {
		if action.Name == "" {
			result.Valid = false
			result.Errors = append(result.Errors, "an action declares an empty Name")
		}
		for _, behaviour := range action.Behaviours {
			for _, kind := range behaviour.Src.Type {
				if !kinds[kind] {
					result.Valid = false
					result.Errors = append(result.Errors, fmt.Sprintf("action %s: unregistered source kind %q", action.Name, kind))
				}
			}
			for _, kind := range behaviour.Dst.Type {
				if !kinds[kind] {
					result.Valid = false
					result.Errors = append(result.Errors, fmt.Sprintf("action %s: unregistered destination kind %q", action.Name, kind))
				}
			}
		}
	}

	termNames := map[string]bool{}
	for _, term := range desc.Terminations {
		if term.Name == "" {
			result.Valid = false
			result.Errors = append(result.Errors, "a termination declares an empty Name")
		}
		if termNames[term.Name] {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("duplicate termination name: %s", term.Name))
		}
		termNames[term.Name] = true
		if term.Expression == "" {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("termination %s: empty Expression", term.Name))
		}
	}

	if result.Valid {
		levelResult := validateLevels(desc.Environment.Levels, mapChars)
		if !levelResult.Valid {
			result.Valid = false
		}
		result.Errors = append(result.Errors, levelResult.Errors...)
	}

	if result.Valid {
		result.Errors = append(result.Errors,
			fmt.Sprintf("✓ Environment: %s", desc.Environment.Name),
			fmt.Sprintf("✓ Object kinds: %d", len(desc.Objects)),
			fmt.Sprintf("✓ Actions: %d", len(desc.Actions)),
			fmt.Sprintf("✓ Terminations: %d", len(desc.Terminations)),
			fmt.Sprintf("✓ Levels: %d", len(desc.Environment.Levels)),
		)
	}

	return result
}

// validateLevels checks row width consistency and that every non-background
// token in a level uses a registered map character.
func validateLevels(levels []string, mapChars map[string]string) ValidationResult {
	result := ValidationResult{Valid: true}

	for li, level := range levels {
		lines := strings.Split(strings.TrimSpace(level), "\n")
		width := -1
		for ri, line := range lines {
			tokens := strings.Fields(line)
			if width == -1 {
				width = len(tokens)
			} else if len(tokens) != width {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("level %d row %d: expected %d columns, got %d", li, ri, width, len(tokens)))
			}
			for _, tok := range tokens {
				if tok == "." {
					continue
				}
				char := strings.TrimRight(tok, "0123456789")
				if _, ok := mapChars[char]; !ok {
					result.Valid = false
					result.Errors = append(result.Errors, fmt.Sprintf("level %d: unregistered map character %q in token %q", li, char, tok))
				}
			}
		}
	}

	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Levels: all %d consistent and resolvable", len(levels)))
	}

	return result
}

// main scans a directory (default ../descriptions) for *.yaml files and
// validates each one, printing a concise report and exiting with non-zero
// status if any are invalid.
func main() {
	dir := "../descriptions"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		fmt.Printf("error finding description files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateDescription(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, e := range result.Errors {
				if !strings.HasPrefix(e, "✓") {
					fmt.Println("  ❌ " + e)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All descriptions are valid!")
	} else {
		fmt.Println("❌ Some descriptions have errors")
		os.Exit(1)
	}
}

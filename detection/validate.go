package detection

import "fmt"

// minScriptLength rejects no-op script rules. A bare "exit 0" always reports
// the app as absent or present regardless of state; anything shorter than
// this cannot be a real check.
const minScriptLength = 10

// Validate structurally checks a rule set, engine-generated or externally
// sourced. Errors accumulate across all rules; validation never
// short-circuits and never panics. Warnings flag deployable-but-degraded
// rules.
func Validate(rules RuleSet) ValidationResult {
	result := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	if len(rules) == 0 {
		result.Errors = append(result.Errors, "At least one detection rule is required")
		return result
	}

	for i, rule := range rules {
		switch r := rule.(type) {
		case MsiRule:
			if r.ProductCode == "" {
				result.Errors = append(result.Errors,
					fmt.Sprintf("rule %d: MSI detection rule is missing a product code", i+1))
			}
		case FileRule:
			if r.Path == "" || r.FileOrFolderName == "" {
				result.Errors = append(result.Errors,
					fmt.Sprintf("rule %d: file detection rule requires both a path and a file or folder name", i+1))
			} else {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("rule %d: folder-existence detection cannot distinguish application versions", i+1))
			}
		case RegistryRule:
			if r.KeyPath == "" {
				result.Errors = append(result.Errors,
					fmt.Sprintf("rule %d: registry detection rule requires a key path", i+1))
			}
		case ScriptRule:
			if len(r.ScriptContent) <= minScriptLength {
				result.Errors = append(result.Errors,
					fmt.Sprintf("rule %d: script detection rule content is too short to be a meaningful check", i+1))
			}
		default:
			result.Errors = append(result.Errors,
				fmt.Sprintf("rule %d: unknown detection rule kind", i+1))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// Package migration moves apps from a legacy deployment system into the
// engine: it reconciles externally sourced detection rules with engine
// output, tags provenance, and runs items through validation and deployment
// policies without letting a single bad app abort a batch.
package migration

import (
	"context"
	"fmt"

	"github.com/jthornton/deploycart/detection"
	"github.com/jthornton/deploycart/policy"
)

// Provenance records which system produced the final rule set.
type Provenance string

const (
	ProvenanceEngine   Provenance = "engine"
	ProvenanceExternal Provenance = "external"
	ProvenanceHybrid   Provenance = "hybrid"
)

// Options controls how external rules are reconciled with engine output.
type Options struct {
	// PreserveExternal prefers externally sourced rules when present.
	PreserveExternal bool

	// AllowMixing tags the result hybrid when both sources are non-empty.
	// NOTE: known limitation, kept deliberately — the hybrid path only tags
	// provenance; it picks the external set and does not interleave the two
	// rule arrays into one combined set. Callers expecting a real merge will
	// not get one until product intent is clarified.
	AllowMixing bool
}

// Item is one app in a migration batch.
type Item struct {
	AppID           string
	DisplayName     string
	Identifier      string
	Version         string
	Installer       *detection.Installer // nil when no installer was resolved
	ExternalRules   detection.RuleSet
	AlreadyMigrated bool
}

// Result is the outcome for one item. BlockingReasons are fatal for the item
// only; Warnings are informational and migration proceeds.
type Result struct {
	AppID            string
	DisplayName      string
	Rules            detection.RuleSet
	Provenance       Provenance
	InstallCommand   string
	UninstallCommand string
	Warnings         []string
	BlockingReasons  []string
}

// Blocked reports whether the item cannot be migrated.
func (r Result) Blocked() bool {
	return len(r.BlockingReasons) > 0
}

// Hybridizer reconciles rule sets and gates items through deployment
// policies. The policy engine is optional.
type Hybridizer struct {
	policies *policy.Engine
}

// NewHybridizer creates a hybridizer. policies may be nil.
func NewHybridizer(policies *policy.Engine) *Hybridizer {
	return &Hybridizer{policies: policies}
}

// Migrate processes a single item. It never returns an error: every failure
// mode is either a blocking reason or a warning on the result.
func (h *Hybridizer) Migrate(item Item, opts Options) Result {
	result := Result{
		AppID:           item.AppID,
		DisplayName:     item.DisplayName,
		Warnings:        []string{},
		BlockingReasons: []string{},
	}

	if item.AlreadyMigrated {
		result.BlockingReasons = append(result.BlockingReasons, "already migrated")
		return result
	}
	if item.Installer == nil {
		result.BlockingReasons = append(result.BlockingReasons, "no installer found")
		return result
	}

	inst := *item.Installer
	synthesized := detection.Synthesize(inst, item.DisplayName, item.Identifier, item.Version)

	switch {
	case len(item.ExternalRules) > 0 && opts.PreserveExternal:
		result.Rules = item.ExternalRules
		result.Provenance = ProvenanceExternal
	case len(item.ExternalRules) > 0 && len(synthesized) > 0 && opts.AllowMixing:
		// Label-only hybrid: see Options.AllowMixing.
		result.Rules = item.ExternalRules
		result.Provenance = ProvenanceHybrid
	default:
		result.Rules = synthesized
		result.Provenance = ProvenanceEngine
	}

	result.InstallCommand = detection.BuildInstallCommand(inst, inst.Scope)
	result.UninstallCommand = detection.BuildUninstallCommand(inst, item.DisplayName)
	if result.UninstallCommand == fmt.Sprintf(`msiexec /x %s /qn /norestart`, detection.ProductCodePlaceholder) {
		result.Warnings = append(result.Warnings,
			"uninstall command contains a product code placeholder and requires manual completion")
	}

	// Validator errors demote to warnings here: migration previews surface
	// them for review instead of dropping the app from the batch.
	validation := detection.Validate(result.Rules)
	for _, e := range validation.Errors {
		result.Warnings = append(result.Warnings, "detection: "+e)
	}
	result.Warnings = append(result.Warnings, validation.Warnings...)

	h.applyPolicies(item, inst, &result)

	return result
}

// applyPolicies evaluates active deployment policies; matched block policies
// add blocking reasons, matched warn policies add warnings, and evaluation
// errors surface as warnings so a broken policy never stalls a batch.
func (h *Hybridizer) applyPolicies(item Item, inst detection.Installer, result *Result) {
	if h.policies == nil {
		return
	}

	evals, err := h.policies.EvaluateAll(policyFacts(item, inst))
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("policy evaluation unavailable: %v", err))
		return
	}

	for _, ev := range evals {
		if ev.Err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("policy %q failed to evaluate: %v", ev.PolicyName, ev.Err))
			continue
		}
		if !ev.Matched {
			continue
		}
		switch ev.Action {
		case policy.ActionBlock:
			result.BlockingReasons = append(result.BlockingReasons,
				fmt.Sprintf("blocked by policy %q", ev.PolicyName))
		case policy.ActionWarn:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("flagged by policy %q", ev.PolicyName))
		}
	}
}

// policyFacts exposes the item to CEL policies as Installer and App objects.
func policyFacts(item Item, inst detection.Installer) map[string]any {
	return map[string]any{
		"Installer": map[string]any{
			"type":              string(inst.Type),
			"architecture":      string(inst.Architecture),
			"scope":             string(inst.Scope),
			"url":               inst.URL,
			"sha256":            inst.SHA256,
			"productCode":       inst.ProductCode,
			"packageFamilyName": inst.PackageFamilyName,
		},
		"App": map[string]any{
			"name":       item.DisplayName,
			"identifier": item.Identifier,
			"version":    item.Version,
		},
	}
}

// ProgressFunc reports batch progress; index is zero-based over the input
// order.
type ProgressFunc func(index, total int, result Result)

// MigrateBatch processes items sequentially in input order. Blocked items
// are collected, not fatal. The context lets callers abandon a long batch;
// already-produced results remain valid and need no cleanup.
func (h *Hybridizer) MigrateBatch(ctx context.Context, items []Item, opts Options, progress ProgressFunc) []Result {
	results := make([]Result, 0, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		result := h.Migrate(item, opts)
		results = append(results, result)
		if progress != nil {
			progress(i, len(items), result)
		}
	}
	return results
}

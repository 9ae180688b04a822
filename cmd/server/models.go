package main

import "github.com/jthornton/deploycart/detection"

// PreviewRequest asks for synthesized rules and commands without persisting.
type PreviewRequest struct {
	Installer   detection.Installer `json:"installer"`
	DisplayName string              `json:"displayName"`
	Identifier  string              `json:"identifier"`
	Version     string              `json:"version"`
}

// PreviewResponse carries both the internal rule set and the platform-schema
// projection so callers can inspect either representation.
type PreviewResponse struct {
	Rules            detection.RuleSet          `json:"detectionRules"`
	PlatformRules    []any                      `json:"platformRules"`
	InstallCommand   string                     `json:"installCommand"`
	UninstallCommand string                     `json:"uninstallCommand"`
	Validation       detection.ValidationResult `json:"validation"`
}

// ValidateRequest checks an arbitrary rule set against the deployability
// rules without synthesizing anything.
type ValidateRequest struct {
	Rules detection.RuleSet `json:"detectionRules"`
}

// PackageAppRequest packages an installer into a catalog app.
type PackageAppRequest struct {
	Installer   detection.Installer `json:"installer"`
	DisplayName string              `json:"displayName"`
	Identifier  string              `json:"identifier"`
	Version     string              `json:"version"`
}

// MigrateItem is one app in a migration batch request.
type MigrateItem struct {
	AppID           string               `json:"appId"`
	DisplayName     string               `json:"displayName"`
	Identifier      string               `json:"identifier"`
	Version         string               `json:"version"`
	Installer       *detection.Installer `json:"installer,omitempty"`
	ExternalRules   detection.RuleSet    `json:"externalRules,omitempty"`
	AlreadyMigrated bool                 `json:"alreadyMigrated"`
}

// MigrateOptions controls reconciliation of external and synthesized rules.
type MigrateOptions struct {
	PreserveExternal bool `json:"preserveExternal"`
	AllowMixing      bool `json:"allowMixing"`
}

// MigrateRequest is a batch of legacy apps to migrate.
type MigrateRequest struct {
	Items   []MigrateItem  `json:"items"`
	Options MigrateOptions `json:"options"`
}

// MigrateItemResult is the per-item migration outcome.
type MigrateItemResult struct {
	AppID            string            `json:"appId"`
	DisplayName      string            `json:"displayName"`
	Rules            detection.RuleSet `json:"detectionRules,omitempty"`
	Provenance       string            `json:"provenance,omitempty"`
	InstallCommand   string            `json:"installCommand,omitempty"`
	UninstallCommand string            `json:"uninstallCommand,omitempty"`
	Warnings         []string          `json:"warnings"`
	BlockingReasons  []string          `json:"blockingReasons"`
}

// MigrateResponse summarizes a migration batch.
type MigrateResponse struct {
	Results  []MigrateItemResult `json:"results"`
	Migrated int                 `json:"migrated"`
	Blocked  int                 `json:"blocked"`
}

// CreatePolicyRequest creates or updates a deployment policy.
type CreatePolicyRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Action     string `json:"action"`
	Active     bool   `json:"active"`
}

package detection

import (
	"encoding/json"
	"fmt"
)

// InstallerType identifies the packaging technology of an installer.
type InstallerType string

const (
	TypeMsi      InstallerType = "msi"
	TypeWix      InstallerType = "wix"
	TypeMsix     InstallerType = "msix"
	TypeAppx     InstallerType = "appx"
	TypeExe      InstallerType = "exe"
	TypeInno     InstallerType = "inno"
	TypeNullsoft InstallerType = "nullsoft"
	TypeBurn     InstallerType = "burn"
	TypeZip      InstallerType = "zip"
	TypePortable InstallerType = "portable"
	TypeUnknown  InstallerType = "unknown"
)

// Canonical collapses alias types: Wix behaves as Msi and Appx as Msix for
// both detection and command synthesis.
func (t InstallerType) Canonical() InstallerType {
	switch t {
	case TypeWix:
		return TypeMsi
	case TypeAppx:
		return TypeMsix
	default:
		return t
	}
}

// Architecture is the CPU architecture an installer targets.
type Architecture string

const (
	ArchX86     Architecture = "x86"
	ArchX64     Architecture = "x64"
	ArchArm64   Architecture = "arm64"
	ArchNeutral Architecture = "neutral"
)

// InstallScope is whether an app installs per-user or machine-wide.
type InstallScope string

const (
	ScopeMachine InstallScope = "machine"
	ScopeUser    InstallScope = "user"
)

// Installer describes a single, already-selected installer variant.
// Variant selection (picking one among several architectures or scopes)
// happens upstream; the engine never sees a list.
type Installer struct {
	Type              InstallerType `json:"type"`
	Architecture      Architecture  `json:"architecture"`
	Scope             InstallScope  `json:"scope"`
	URL               string        `json:"url"`
	SHA256            string        `json:"sha256"`
	ProductCode       string        `json:"productCode,omitempty"`
	PackageFamilyName string        `json:"packageFamilyName,omitempty"`
	SilentArgs        string        `json:"silentArgs,omitempty"`
}

// RuleKind discriminates the detection rule variants.
type RuleKind string

const (
	KindMsi      RuleKind = "msi"
	KindFile     RuleKind = "file"
	KindRegistry RuleKind = "registry"
	KindScript   RuleKind = "script"
)

// Operator is a version comparison operator understood by the platform.
type Operator string

const OperatorGreaterThanOrEqual Operator = "greaterThanOrEqual"

// FileDetectionType is how a file rule checks the filesystem.
type FileDetectionType string

const FileDetectionExists FileDetectionType = "exists"

// RegistryDetectionType is how a registry rule inspects a value.
type RegistryDetectionType string

const RegistryDetectionVersion RegistryDetectionType = "version"

// Rule is a platform-checkable condition proving post-install presence.
// It is a closed sum: exactly MsiRule, FileRule, RegistryRule and ScriptRule
// implement it, and every dispatch site switches over all four.
type Rule interface {
	Kind() RuleKind
	isRule()
}

// MsiRule detects an installed MSI product by its product code.
type MsiRule struct {
	ProductCode     string   `json:"productCode"`
	VersionOperator Operator `json:"productVersionOperator"`
}

// FileRule detects presence of a file or folder on disk.
type FileRule struct {
	Path                 string            `json:"path"`
	FileOrFolderName     string            `json:"fileOrFolderName"`
	DetectionType        FileDetectionType `json:"detectionType"`
	Check32BitOn64System bool              `json:"check32BitOn64System"`
}

// RegistryRule detects a version marker written to the registry by the
// installing agent.
type RegistryRule struct {
	KeyPath        string                `json:"keyPath"`
	ValueName      string                `json:"valueName"`
	DetectionType  RegistryDetectionType `json:"detectionType"`
	Operator       Operator              `json:"operator"`
	DetectionValue string                `json:"detectionValue"`
}

// ScriptRule detects presence by running a PowerShell script whose exit code
// and output the agent interprets.
type ScriptRule struct {
	ScriptContent         string `json:"scriptContent"`
	EnforceSignatureCheck bool   `json:"enforceSignatureCheck"`
	RunAs32Bit            bool   `json:"runAs32Bit"`
}

func (MsiRule) Kind() RuleKind      { return KindMsi }
func (FileRule) Kind() RuleKind     { return KindFile }
func (RegistryRule) Kind() RuleKind { return KindRegistry }
func (ScriptRule) Kind() RuleKind   { return KindScript }

func (MsiRule) isRule()      {}
func (FileRule) isRule()     {}
func (RegistryRule) isRule() {}
func (ScriptRule) isRule()   {}

// RuleSet is an ordered sequence of detection rules. Engine output is always
// exactly one rule; migration paths may carry externally sourced sets.
type RuleSet []Rule

// ruleEnvelope is the persisted/wire form of a Rule: a kind discriminator
// plus exactly one populated variant.
type ruleEnvelope struct {
	Kind     RuleKind      `json:"type"`
	Msi      *MsiRule      `json:"msi,omitempty"`
	File     *FileRule     `json:"file,omitempty"`
	Registry *RegistryRule `json:"registry,omitempty"`
	Script   *ScriptRule   `json:"script,omitempty"`
}

// MarshalJSON encodes each rule as a discriminated envelope so rule sets can
// be stored in the catalog and round-tripped over the API.
func (rs RuleSet) MarshalJSON() ([]byte, error) {
	envs := make([]ruleEnvelope, 0, len(rs))
	for _, r := range rs {
		var env ruleEnvelope
		switch v := r.(type) {
		case MsiRule:
			env = ruleEnvelope{Kind: KindMsi, Msi: &v}
		case FileRule:
			env = ruleEnvelope{Kind: KindFile, File: &v}
		case RegistryRule:
			env = ruleEnvelope{Kind: KindRegistry, Registry: &v}
		case ScriptRule:
			env = ruleEnvelope{Kind: KindScript, Script: &v}
		default:
			return nil, fmt.Errorf("unknown rule kind %T", r)
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalJSON decodes a rule set from its envelope form.
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	var envs []ruleEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}

	out := make(RuleSet, 0, len(envs))
	for i, env := range envs {
		switch env.Kind {
		case KindMsi:
			if env.Msi == nil {
				return fmt.Errorf("rule %d: msi envelope has no msi payload", i)
			}
			out = append(out, *env.Msi)
		case KindFile:
			if env.File == nil {
				return fmt.Errorf("rule %d: file envelope has no file payload", i)
			}
			out = append(out, *env.File)
		case KindRegistry:
			if env.Registry == nil {
				return fmt.Errorf("rule %d: registry envelope has no registry payload", i)
			}
			out = append(out, *env.Registry)
		case KindScript:
			if env.Script == nil {
				return fmt.Errorf("rule %d: script envelope has no script payload", i)
			}
			out = append(out, *env.Script)
		default:
			return fmt.Errorf("rule %d: unknown rule kind %q", i, env.Kind)
		}
	}

	*rs = out
	return nil
}

// ValidationResult is the structural check outcome for a rule set.
// Errors mean the set is not deployable; warnings mean deployable but with
// degraded confidence.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Package payload serializes engine output for the two external consumers:
// the management-platform API (Graph-style detection rule schema) and the
// deployment packaging pipeline (package descriptor with opaque command
// strings).
package payload

import (
	"encoding/base64"
	"fmt"

	"github.com/jthornton/deploycart/detection"
)

// Graph-style detection rule discriminators.
const (
	odataProductCodeDetection = "#microsoft.graph.win32LobAppProductCodeDetection"
	odataFileSystemDetection  = "#microsoft.graph.win32LobAppFileSystemDetection"
	odataRegistryDetection    = "#microsoft.graph.win32LobAppRegistryDetection"
	odataScriptDetection      = "#microsoft.graph.win32LobAppPowerShellScriptDetection"
)

// ProductCodeDetection is the platform form of an MSI rule.
type ProductCodeDetection struct {
	ODataType              string `json:"@odata.type"`
	ProductCode            string `json:"productCode"`
	ProductVersionOperator string `json:"productVersionOperator"`
}

// FileSystemDetection is the platform form of a file rule.
type FileSystemDetection struct {
	ODataType            string `json:"@odata.type"`
	Path                 string `json:"path"`
	FileOrFolderName     string `json:"fileOrFolderName"`
	DetectionType        string `json:"detectionType"`
	Check32BitOn64System bool   `json:"check32BitOn64System"`
}

// RegistryDetection is the platform form of a registry rule.
type RegistryDetection struct {
	ODataType      string `json:"@odata.type"`
	KeyPath        string `json:"keyPath"`
	ValueName      string `json:"valueName"`
	DetectionType  string `json:"detectionType"`
	Operator       string `json:"operator"`
	DetectionValue string `json:"detectionValue"`
}

// ScriptDetection is the platform form of a script rule. The platform
// requires script content base64-encoded.
type ScriptDetection struct {
	ODataType             string `json:"@odata.type"`
	ScriptContent         string `json:"scriptContent"`
	EnforceSignatureCheck bool   `json:"enforceSignatureCheck"`
	RunAs32Bit            bool   `json:"runAs32Bit"`
}

// DetectionRules maps a rule set 1:1 onto the platform's detection schema.
// The mapping is exhaustive over the closed rule sum; an unknown variant is
// a programming error reported as such, never a panic.
func DetectionRules(rules detection.RuleSet) ([]any, error) {
	out := make([]any, 0, len(rules))
	for i, rule := range rules {
		switch r := rule.(type) {
		case detection.MsiRule:
			out = append(out, ProductCodeDetection{
				ODataType:              odataProductCodeDetection,
				ProductCode:            r.ProductCode,
				ProductVersionOperator: string(r.VersionOperator),
			})
		case detection.FileRule:
			out = append(out, FileSystemDetection{
				ODataType:            odataFileSystemDetection,
				Path:                 r.Path,
				FileOrFolderName:     r.FileOrFolderName,
				DetectionType:        string(r.DetectionType),
				Check32BitOn64System: r.Check32BitOn64System,
			})
		case detection.RegistryRule:
			out = append(out, RegistryDetection{
				ODataType:      odataRegistryDetection,
				KeyPath:        r.KeyPath,
				ValueName:      r.ValueName,
				DetectionType:  string(r.DetectionType),
				Operator:       string(r.Operator),
				DetectionValue: r.DetectionValue,
			})
		case detection.ScriptRule:
			out = append(out, ScriptDetection{
				ODataType:             odataScriptDetection,
				ScriptContent:         base64.StdEncoding.EncodeToString([]byte(r.ScriptContent)),
				EnforceSignatureCheck: r.EnforceSignatureCheck,
				RunAs32Bit:            r.RunAs32Bit,
			})
		default:
			return nil, fmt.Errorf("rule %d: unknown rule kind %T", i, rule)
		}
	}
	return out, nil
}

// PackageDescriptor is what the deployment packaging pipeline embeds in a
// deployable package. Command strings are opaque to the pipeline; the
// REGISTRY_UNINSTALL:/MSIX_UNINSTALL: marker contract must survive verbatim.
type PackageDescriptor struct {
	AppID                string `json:"appId"`
	DisplayName          string `json:"displayName"`
	InstallCommandLine   string `json:"installCommandLine"`
	UninstallCommandLine string `json:"uninstallCommandLine"`
	InstallScope         string `json:"installScope"`
	DetectionRules       []any  `json:"detectionRules"`
}

// BuildPackageDescriptor assembles the pipeline descriptor for a packaged
// app.
func BuildPackageDescriptor(appID, displayName string, inst detection.Installer,
	rules detection.RuleSet, installCmd, uninstallCmd string) (PackageDescriptor, error) {

	platformRules, err := DetectionRules(rules)
	if err != nil {
		return PackageDescriptor{}, fmt.Errorf("failed to map detection rules: %w", err)
	}

	return PackageDescriptor{
		AppID:                appID,
		DisplayName:          displayName,
		InstallCommandLine:   installCmd,
		UninstallCommandLine: uninstallCmd,
		InstallScope:         string(inst.Scope),
		DetectionRules:       platformRules,
	}, nil
}

package detection

import (
	"fmt"
	"strings"
)

// Synthesize produces the canonical detection rule for an installer. The
// result is always exactly one rule: the strongest tier the available
// metadata supports.
//
// Product codes and package family names are the only platform-native,
// collision-resistant identifiers, so they win outright. When absent, a
// synthetic version marker written to the registry by the installing agent
// still beats a folder-existence check, which cannot distinguish versions and
// false-positives across upgrades. Folder existence is the tier of last
// resort.
func Synthesize(inst Installer, displayName, identifier, version string) RuleSet {
	switch inst.Type.Canonical() {
	case TypeMsi:
		if inst.ProductCode != "" {
			return RuleSet{MsiRule{
				ProductCode:     inst.ProductCode,
				VersionOperator: OperatorGreaterThanOrEqual,
			}}
		}
		return RuleSet{folderRule(inst, displayName)}

	case TypeExe, TypeInno, TypeNullsoft, TypeBurn:
		if identifier != "" && version != "" {
			return RuleSet{versionMarkerRule(inst.Scope, identifier, version)}
		}
		return RuleSet{folderRule(inst, displayName)}

	case TypeMsix:
		if inst.PackageFamilyName != "" {
			return RuleSet{ScriptRule{
				ScriptContent:         packagePresenceScript(inst.PackageFamilyName),
				EnforceSignatureCheck: false,
				RunAs32Bit:            false,
			}}
		}
		return RuleSet{folderRule(inst, displayName)}

	case TypeZip, TypePortable, TypeUnknown:
		return RuleSet{folderRule(inst, displayName)}

	default:
		// Unrecognized type strings degrade to the weakest valid tier
		// rather than failing the packaging run.
		return RuleSet{folderRule(inst, displayName)}
	}
}

// folderRule is the last-resort detection tier: the install folder exists.
func folderRule(inst Installer, displayName string) FileRule {
	path := InstallFolder(inst.Architecture, inst.Scope)
	return FileRule{
		Path:                 path,
		FileOrFolderName:     SanitizeFolderName(displayName),
		DetectionType:        FileDetectionExists,
		Check32BitOn64System: is32BitProgramFiles(path),
	}
}

// versionMarkerRule detects the synthetic version value the installing agent
// writes under the vendor registry namespace.
func versionMarkerRule(scope InstallScope, identifier, version string) RegistryRule {
	return RegistryRule{
		KeyPath:        RegistryKeyPath(scope, SanitizeRegistryIdentifier(identifier)),
		ValueName:      "Version",
		DetectionType:  RegistryDetectionVersion,
		Operator:       OperatorGreaterThanOrEqual,
		DetectionValue: version,
	}
}

// packagePresenceScript builds a PowerShell check for an MSIX/APPX package
// family name. The publisher-hash suffix (text after the trailing underscore)
// is opaque and can differ in case between store and sideload signatures, so
// it is matched as a substring of the installed family name rather than as an
// exact token.
func packagePresenceScript(familyName string) string {
	name := familyName
	suffix := ""
	if i := strings.LastIndex(familyName, "_"); i > 0 {
		name = familyName[:i]
		suffix = familyName[i+1:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "$name = '%s'\n", escapeSingleQuotes(name))
	fmt.Fprintf(&b, "$suffix = '%s'\n", escapeSingleQuotes(suffix))
	b.WriteString("$pkg = Get-AppxPackage -Name $name -AllUsers -ErrorAction SilentlyContinue\n")
	b.WriteString("if ($null -ne $pkg -and $pkg.PackageFamilyName -like ('*' + $suffix + '*')) {\n")
	b.WriteString("    Write-Output 'detected'\n")
	b.WriteString("    exit 0\n")
	b.WriteString("}\n")
	b.WriteString("exit 1\n")
	return b.String()
}

// escapeSingleQuotes escapes embedded quotes for a single-quoted PowerShell
// string literal.
func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

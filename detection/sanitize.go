package detection

import "strings"

// registryVendor is the vendor namespace under which the installing agent
// writes version markers.
const registryVendor = "DeployCart"

// maxFolderNameLength caps sanitized folder names; longer display names get
// truncated rather than rejected.
const maxFolderNameLength = 64

// fallbackFolderName is used when sanitization leaves nothing usable.
const fallbackFolderName = "Application"

// forbiddenFolderChars are characters illegal in Windows file and folder
// names. Stripping them silently is deliberate: a detection rule that fails
// to resolve a path fails silently on thousands of machines.
const forbiddenFolderChars = `:<>?"/\|*`

// SanitizeFolderName makes a display name safe to use as a file or folder
// name in a detection rule. Total: never returns an empty string.
func SanitizeFolderName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if strings.ContainsRune(forbiddenFolderChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := b.String()
	if runes := []rune(cleaned); len(runes) > maxFolderNameLength {
		cleaned = string(runes[:maxFolderNameLength])
	}

	if strings.TrimSpace(cleaned) == "" {
		return fallbackFolderName
	}
	return cleaned
}

// SanitizeRegistryIdentifier normalizes a package identifier for use as a
// registry key segment. Dots and dashes are the only separators package
// identifiers use in practice; both map to underscores.
func SanitizeRegistryIdentifier(id string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return replacer.Replace(id)
}

// RegistryKeyPath builds the vendor-namespaced key path where the installing
// agent writes the version marker for an app. The identifier must already be
// sanitized via SanitizeRegistryIdentifier.
func RegistryKeyPath(scope InstallScope, sanitizedID string) string {
	hive := `HKEY_LOCAL_MACHINE`
	if scope == ScopeUser {
		hive = `HKEY_CURRENT_USER`
	}
	return hive + `\SOFTWARE\` + registryVendor + `\Apps\` + sanitizedID
}

// InstallFolder resolves the conventional install location for an
// architecture/scope combination, as an unexpanded environment path.
func InstallFolder(arch Architecture, scope InstallScope) string {
	if scope == ScopeUser {
		return `%LOCALAPPDATA%\Programs`
	}
	if arch == ArchX86 {
		return `%ProgramFiles(x86)%`
	}
	return `%ProgramFiles%`
}

// is32BitProgramFiles reports whether a resolved install folder is the 32-bit
// Program Files path, which requires the agent to check the 32-bit view on
// 64-bit systems.
func is32BitProgramFiles(path string) bool {
	return path == `%ProgramFiles(x86)%`
}

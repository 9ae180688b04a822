package detection

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Marker prefixes are contracts with the downstream execution agent, which
// resolves them at run time. The synthesizer never executes anything.
const (
	// RegistryUninstallPrefix marks an uninstall command the agent resolves
	// by looking up the real uninstall string in the Windows uninstall
	// registry key matching the display name.
	RegistryUninstallPrefix = "REGISTRY_UNINSTALL:"

	// MsixUninstallPrefix marks an uninstall command the agent resolves by
	// removing the package with the given family name.
	MsixUninstallPrefix = "MSIX_UNINSTALL:"

	// ProductCodePlaceholder appears in MSI uninstall commands when no
	// product code is known; manual completion is required before deploy.
	ProductCodePlaceholder = "{PRODUCT_CODE}"
)

// Default silent switches per installer framework.
const (
	innoSilentArgs     = "/VERYSILENT /SUPPRESSMSGBOXES /NORESTART"
	nullsoftSilentArgs = "/S"
	burnSilentArgs     = "/install /quiet /norestart"
	exeSilentArgs      = "/S"
)

// BuildInstallCommand produces the unattended install command line for an
// installer. Total and deterministic: every descriptor yields a command.
func BuildInstallCommand(inst Installer, scope InstallScope) string {
	switch inst.Type.Canonical() {
	case TypeMsi:
		file := installerFileName(inst.URL, ".msi")
		allUsers := `ALLUSERS=1`
		if scope == ScopeUser {
			allUsers = `ALLUSERS=""`
		}
		return fmt.Sprintf(`msiexec /i "%s" /qn %s /norestart`, file, allUsers)

	case TypeExe, TypeInno, TypeNullsoft, TypeBurn:
		file := installerFileName(inst.URL, ".exe")
		args := inst.SilentArgs
		if args == "" {
			args = defaultSilentArgs(inst.Type.Canonical())
		}
		return fmt.Sprintf(`"%s" %s`, file, args)

	case TypeMsix:
		file := installerFileName(inst.URL, ".msix")
		return fmt.Sprintf(`Add-AppxPackage -Path "%s"`, file)

	case TypeZip, TypePortable:
		file := installerFileName(inst.URL, ".zip")
		target := InstallFolder(inst.Architecture, scope) + `\` + fileStem(file)
		return fmt.Sprintf(`Expand-Archive -Path "%s" -DestinationPath "%s" -Force`, file, target)

	default:
		file := installerFileName(inst.URL, ".exe")
		return fmt.Sprintf(`"%s" %s`, file, exeSilentArgs)
	}
}

// BuildUninstallCommand produces the unattended uninstall command line.
// Uninstall strings are often not knowable at synthesis time; those cases
// emit marker commands the execution agent resolves at run time.
func BuildUninstallCommand(inst Installer, displayName string) string {
	switch inst.Type.Canonical() {
	case TypeMsi:
		if inst.ProductCode != "" {
			return fmt.Sprintf(`msiexec /x %s /qn /norestart`, inst.ProductCode)
		}
		return fmt.Sprintf(`msiexec /x %s /qn /norestart`, ProductCodePlaceholder)

	case TypeExe, TypeInno, TypeNullsoft, TypeBurn:
		if displayName != "" {
			return RegistryUninstallPrefix + displayName
		}
		return `uninstall.exe /S`

	case TypeMsix:
		return MsixUninstallPrefix + inst.PackageFamilyName

	default:
		if displayName != "" {
			return RegistryUninstallPrefix + displayName
		}
		return `uninstall.exe /S`
	}
}

func defaultSilentArgs(canonical InstallerType) string {
	switch canonical {
	case TypeInno:
		return innoSilentArgs
	case TypeNullsoft:
		return nullsoftSilentArgs
	case TypeBurn:
		return burnSilentArgs
	default:
		return exeSilentArgs
	}
}

// installerFileName derives the local file name the agent will have staged
// from a download URL. Extensionless URLs (common with redirecting download
// endpoints) get the type's default extension appended.
func installerFileName(rawURL, defaultExt string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	} else if i := strings.LastIndex(rawURL, "/"); i >= 0 {
		name = rawURL[i+1:]
	}

	if name == "" || name == "." || name == "/" {
		name = "installer" + defaultExt
	}
	if path.Ext(name) == "" {
		name += defaultExt
	}
	return name
}

// fileStem strips the extension from a derived file name.
func fileStem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

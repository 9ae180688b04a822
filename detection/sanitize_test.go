package detection

import (
	"strings"
	"testing"
)

func TestSanitizeFolderNameStripsForbiddenCharacters(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"Colon", "App: The Sequel", "App The Sequel"},
		{"Angle brackets", "<App>", "App"},
		{"Question mark", "App?", "App"},
		{"Quotes", `"App"`, "App"},
		{"Slashes", `App/Tools\Bin`, "AppToolsBin"},
		{"Pipe and star", "App|*", "App"},
		{"Clean name untouched", "Test App", "Test App"},
		{"Leading and trailing spaces", "  Test App  ", "Test App"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeFolderName(tc.input)
			if got != tc.want {
				t.Errorf("SanitizeFolderName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeFolderNameNeverContainsForbiddenCharacters(t *testing.T) {
	inputs := []string{
		`a:b<c>d?e"f/g\h|i*j`,
		`::::`,
		`C:\Program Files\App`,
	}

	for _, input := range inputs {
		got := SanitizeFolderName(input)
		if strings.ContainsAny(got, forbiddenFolderChars) {
			t.Errorf("SanitizeFolderName(%q) = %q still contains forbidden characters", input, got)
		}
	}
}

func TestSanitizeFolderNameTruncatesTo64(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := SanitizeFolderName(long)
	if len([]rune(got)) != maxFolderNameLength {
		t.Errorf("SanitizeFolderName(long) length = %d, want %d", len([]rune(got)), maxFolderNameLength)
	}
}

func TestSanitizeFolderNameFallback(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Whitespace only", "   "},
		{"Only forbidden characters", `<>:?*`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeFolderName(tc.input)
			if got != fallbackFolderName {
				t.Errorf("SanitizeFolderName(%q) = %q, want %q", tc.input, got, fallbackFolderName)
			}
		})
	}
}

func TestSanitizeRegistryIdentifier(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"Publisher.TestApp", "Publisher_TestApp"},
		{"vendor-app", "vendor_app"},
		{"a.b-c.d", "a_b_c_d"},
		{"NoSeparators", "NoSeparators"},
	}

	for _, tc := range testCases {
		got := SanitizeRegistryIdentifier(tc.input)
		if got != tc.want {
			t.Errorf("SanitizeRegistryIdentifier(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestRegistryKeyPathScopes(t *testing.T) {
	machine := RegistryKeyPath(ScopeMachine, "Publisher_TestApp")
	if !strings.HasPrefix(machine, `HKEY_LOCAL_MACHINE\`) {
		t.Errorf("machine-scope key path = %q, want HKEY_LOCAL_MACHINE prefix", machine)
	}

	user := RegistryKeyPath(ScopeUser, "Publisher_TestApp")
	if !strings.HasPrefix(user, `HKEY_CURRENT_USER\`) {
		t.Errorf("user-scope key path = %q, want HKEY_CURRENT_USER prefix", user)
	}

	want := `HKEY_LOCAL_MACHINE\SOFTWARE\DeployCart\Apps\Publisher_TestApp`
	if machine != want {
		t.Errorf("machine-scope key path = %q, want %q", machine, want)
	}
}

func TestInstallFolder(t *testing.T) {
	testCases := []struct {
		name  string
		arch  Architecture
		scope InstallScope
		want  string
	}{
		{"Machine x86", ArchX86, ScopeMachine, `%ProgramFiles(x86)%`},
		{"Machine x64", ArchX64, ScopeMachine, `%ProgramFiles%`},
		{"Machine arm64", ArchArm64, ScopeMachine, `%ProgramFiles%`},
		{"Machine neutral", ArchNeutral, ScopeMachine, `%ProgramFiles%`},
		{"User x64", ArchX64, ScopeUser, `%LOCALAPPDATA%\Programs`},
		{"User x86", ArchX86, ScopeUser, `%LOCALAPPDATA%\Programs`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := InstallFolder(tc.arch, tc.scope)
			if got != tc.want {
				t.Errorf("InstallFolder(%s, %s) = %q, want %q", tc.arch, tc.scope, got, tc.want)
			}
		})
	}
}

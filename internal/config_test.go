package internal

import (
	"strings"
	"testing"
)

func validProject() ProjectConfig {
	return ProjectConfig{
		Root:    "./web",
		Entries: map[string]string{"app": "./src/index.js"},
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Project.Entries = map[string]string{"app": "./src/index.js"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestProjectConfig_RequiresRoot(t *testing.T) {
	cfg := validProject()
	cfg.Root = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing root should fail")
	}
}

func TestProjectConfig_RequiresEntries(t *testing.T) {
	cfg := validProject()
	cfg.Entries = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("no entries should fail")
	}
}

func TestProjectConfig_EntryNames(t *testing.T) {
	for _, name := range []string{"app", "admin-panel", "page_2"} {
		cfg := validProject()
		cfg.Entries = map[string]string{name: "./src/index.js"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("entry name %q should pass: %v", name, err)
		}
	}
	for _, name := range []string{"", "App", "a/b", "-lead", "vendor"} {
		cfg := validProject()
		cfg.Entries = map[string]string{name: "./src/index.js"}
		if err := cfg.Validate(); err == nil {
			t.Errorf("entry name %q should fail", name)
		}
	}
}

func TestOutputConfig_TemplateMustContainName(t *testing.T) {
	cfg := OutputConfig{Dir: "./dist", Template: "bundle-[hash].js"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("template without [name] should fail")
	}
	if !strings.Contains(err.Error(), "[name]") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Template = "[name]-[hash].js"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid template should pass: %v", err)
	}
}

func TestHTTPConfig_PortRange(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := HTTPConfig{Port: port}
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d should fail", port)
		}
	}
	if err := (&HTTPConfig{Port: 8080}).Validate(); err != nil {
		t.Errorf("port 8080 should pass: %v", err)
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFullConfig_SectionValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Project.Entries = map[string]string{"app": "./src/index.js"}
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

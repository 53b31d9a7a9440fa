package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/raido/internal/chunk"
	"github.com/starford/raido/internal/emit"
	"github.com/starford/raido/internal/resolver"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var entryNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Project ProjectConfig     `yaml:"project"`
	Output  OutputConfig      `yaml:"output"`
	Cache   CacheConfig       `yaml:"cache"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Project.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ProjectConfig describes the project to bundle: source root, entry points,
// and resolution settings.
type ProjectConfig struct {
	Root       string            `yaml:"root"`
	Entries    map[string]string `yaml:"entries"`
	Vendor     VendorConfig      `yaml:"vendor"`
	Extensions []string          `yaml:"extensions"`
}

// VendorConfig controls bare-specifier resolution and vendor chunk hoisting.
type VendorConfig struct {
	Dir      string   `yaml:"dir"`
	Prefixes []string `yaml:"prefixes"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Entries, validation.Required, validation.Length(1, 0)),
	); err != nil {
		return err
	}
	for name := range c.Entries {
		if !entryNameRe.MatchString(name) {
			return fmt.Errorf("project: invalid entry name %q", name)
		}
		if name == chunk.VendorChunkName {
			return fmt.Errorf("project: entry name %q is reserved", name)
		}
	}
	return nil
}

// OutputConfig holds the artifact output directory and file naming template.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Template string `yaml:"template"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Template, validation.Required),
	); err != nil {
		return err
	}
	if !strings.Contains(c.Template, "[name]") {
		return fmt.Errorf("output: template %q must contain [name]", c.Template)
	}
	return nil
}

// CacheConfig holds the build cache database path. An empty path disables
// incremental scanning.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Project: ProjectConfig{
			Root:       ".",
			Vendor:     VendorConfig{Dir: "node_modules", Prefixes: []string{"node_modules/"}},
			Extensions: resolver.DefaultExtensions,
		},
		Output: OutputConfig{
			Dir:      "./dist",
			Template: emit.DefaultTemplate,
		},
		Cache: CacheConfig{
			Path: "./raido.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

// Package config — langtab.yaml project configuration.
//
// A langtab.yaml in the project root declares the table name, the source
// language, the supported language set, and the translation provider.
// Environment variables override file values (LANGTAB_* — see the struct
// tags), so deployments can tweak a checked-in file without editing it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file name.
const FileName = "langtab.yaml"

// Provider configures the external translation service.
type Provider struct {
	// Endpoint is an OpenAI-compatible API base URL. Empty means no
	// translation service is configured.
	Endpoint string `yaml:"endpoint,omitempty" env:"LANGTAB_PROVIDER_ENDPOINT"`
	// Model is the model identifier to request.
	Model string `yaml:"model,omitempty" env:"LANGTAB_PROVIDER_MODEL"`
	// APIKey is the bearer token, usually supplied via environment
	// rather than the checked-in file.
	APIKey string `yaml:"api_key,omitempty" env:"LANGTAB_API_KEY"`
}

// Config is the langtab.yaml structure.
type Config struct {
	// TableName names the string table (file stem inside each
	// language directory).
	TableName string `yaml:"table_name" env:"LANGTAB_TABLE_NAME"`
	// SourceLang is the language the app's texts are written in.
	SourceLang string `yaml:"source_lang" env:"LANGTAB_SOURCE_LANG"`
	// Languages is the ordered supported language set.
	Languages []string `yaml:"languages" env:"LANGTAB_LANGUAGES" envSeparator:","`
	// BundleDir holds the bundle roots, relative to the project root.
	BundleDir string `yaml:"bundle_dir" env:"LANGTAB_BUNDLE_DIR"`
	// Disabled switches all mutating operations off.
	Disabled bool `yaml:"disabled,omitempty" env:"LANGTAB_DISABLED"`
	// Provider configures the translation service.
	Provider Provider `yaml:"provider,omitempty"`
}

// Default returns the configuration used when no langtab.yaml exists.
func Default() *Config {
	return &Config{
		TableName:  "Localizable",
		SourceLang: "en",
		Languages:  []string{"en"},
		BundleDir:  "bundles",
	}
}

// Load reads langtab.yaml from rootDir (if present), applies environment
// overrides, normalizes the language set, and validates the result.
func Load(rootDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No file: defaults plus environment.
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to langtab.yaml in rootDir.
func (c *Config) Save(rootDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	path := filepath.Join(rootDir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("table_name must not be empty")
	}
	if c.SourceLang == "" {
		return fmt.Errorf("source_lang must not be empty")
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("languages must list at least one language")
	}
	return nil
}

// normalize canonicalizes language codes and drops duplicates while
// preserving order.
func (c *Config) normalize() {
	c.SourceLang = NormalizeLang(c.SourceLang)

	seen := make(map[string]bool, len(c.Languages))
	langs := c.Languages[:0]
	for _, lang := range c.Languages {
		lang = NormalizeLang(lang)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}
	c.Languages = langs
}

// NormalizeLang canonicalizes a language code ("sv_SE.UTF-8" → "sv-SE",
// "EN" → "en"). Codes BCP 47 cannot parse are kept as-is, lowercased,
// since table keys are ultimately opaque.
func NormalizeLang(code string) string {
	code = strings.TrimSpace(code)
	if idx := strings.IndexByte(code, '.'); idx >= 0 {
		code = code[:idx]
	}
	code = strings.ReplaceAll(code, "_", "-")
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	return tag.String()
}

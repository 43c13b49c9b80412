// Package config loads the transcan configuration.
//
// Settings come from, in increasing priority: built-in defaults, the
// .transcan.yaml file in the project root, a .env file next to it, TRANSCAN_*
// environment variables and finally command-line flags (applied by the
// caller). A project without .transcan.yaml runs on defaults, with the lang
// directory auto-detected.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/transcan/policy"
)

// FileName is the config file looked up in the project root.
const FileName = ".transcan.yaml"

// EnvFileName is the dotenv file loaded from the project root.
const EnvFileName = ".env"

// ErrNoConfig is returned by LoadFile when the project has no config file.
var ErrNoConfig = errors.New("no " + FileName + " found")

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

// Config is the .transcan.yaml structure.
type Config struct {
	// LangDir holds <locale>.json and <locale>/<namespace>.yaml, relative to the root.
	LangDir string `yaml:"lang_dir"`
	// SourceLocale is the language keys are written in (default "en").
	SourceLocale string   `yaml:"source_locale"`
	Locales      []string `yaml:"locales"`
	// Paths are the source roots scanned for keys, relative to the root.
	Paths       []string `yaml:"paths"`
	Ignore      []string `yaml:"ignore,omitempty"`
	IgnoreFiles []string `yaml:"ignore_files,omitempty"`
	IgnoreDirs  []string `yaml:"ignore_dirs"`

	Translator Translator `yaml:"translator"`
	Heuristics Heuristics `yaml:"heuristics"`
	Server     Server     `yaml:"server"`

	// Root is the absolute project root.
	Root string `yaml:"-"`
	// Source is the config file that was read, empty on defaults.
	Source string `yaml:"-"`
}

// Translator configures the machine translation client.
type Translator struct {
	Endpoint           string        `yaml:"endpoint,omitempty"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Proxy              string        `yaml:"proxy,omitempty"`
	// Concurrency bounds the requests in flight while translating one store.
	Concurrency int `yaml:"concurrency"`
	MaxRetries  int `yaml:"max_retries"`
	// Cache enables the transcan.lock translation memory.
	Cache bool `yaml:"cache"`
}

// Heuristics configures the script checks of the translation policy.
type Heuristics struct {
	policy.Heuristics `yaml:",inline"`
	// Derive extends the checks from the scripts of the configured locales.
	Derive bool `yaml:"derive"`
}

// Server configures the catalog server.
type Server struct {
	Listen string `yaml:"listen"`
	// Prefix is the URL path the UI and API are mounted under.
	Prefix  string `yaml:"prefix"`
	PerPage int    `yaml:"per_page"`
}

// Default returns the built-in configuration.
// DefaultIgnoreDirs are the directories skipped when ignore_dirs is not
// configured. Setting ignore_dirs (even to []) replaces the list.
var DefaultIgnoreDirs = []string{".git", ".hg", ".svn", "node_modules"}

func Default() *Config {
	return &Config{
		LangDir:      "lang",
		SourceLocale: "en",
		Locales:      []string{"en"},
		Paths:        []string{"resources/views", "app/Http/Controllers"},
		IgnoreDirs:   append([]string(nil), DefaultIgnoreDirs...),
		Translator: Translator{
			ConnectTimeout: 5 * time.Second,
			Timeout:        10 * time.Second,
			Concurrency:    4,
			MaxRetries:     2,
			Cache:          true,
		},
		Server: Server{
			Listen:  "127.0.0.1:8080",
			Prefix:  "/translation-scanner",
			PerPage: 25,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadFile reads .transcan.yaml from rootDir on top of the defaults.
// Returns ErrNoConfig if the file does not exist.
func LoadFile(rootDir string) (*Config, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}
	cfg := Default()
	cfg.Root = absRoot

	path := filepath.Join(absRoot, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, ErrNoConfig
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// Load returns the effective configuration of the project in rootDir:
// the config file (or defaults), then .env, then TRANSCAN_* variables.
func Load(rootDir string) (*Config, error) {
	cfg, err := LoadFile(rootDir)
	switch {
	case errors.Is(err, ErrNoConfig):
		cfg.detectLangDir()
	case err != nil:
		return nil, err
	}

	envPath := filepath.Join(cfg.Root, EnvFileName)
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", envPath, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// detectLangDir switches to resources/lang for projects that keep their
// translations there and have no top-level lang directory.
func (c *Config) detectLangDir() {
	if isDir(filepath.Join(c.Root, c.LangDir)) {
		return
	}
	for _, candidate := range []string{"resources/lang", "resources/locales"} {
		if isDir(filepath.Join(c.Root, candidate)) {
			c.LangDir = candidate
			return
		}
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TRANSCAN_LANG_DIR"); v != "" {
		c.LangDir = v
	}
	if v := os.Getenv("TRANSCAN_LOCALES"); v != "" {
		c.Locales = SplitList(v)
	}
	if v := os.Getenv("TRANSCAN_SOURCE_LOCALE"); v != "" {
		c.SourceLocale = v
	}
	if v := os.Getenv("TRANSCAN_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("TRANSCAN_TRANSLATE_ENDPOINT"); v != "" {
		c.Translator.Endpoint = v
	}
	if v := os.Getenv("TRANSCAN_INSECURE_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRANSCAN_INSECURE_TLS: %w", err)
		}
		c.Translator.InsecureSkipVerify = b
	}
	return nil
}

func (c *Config) normalize() {
	c.Locales = trimAll(c.Locales)
	c.Paths = trimAll(c.Paths)
	c.Server.Prefix = "/" + strings.Trim(strings.TrimSpace(c.Server.Prefix), "/")
	if c.Server.Prefix == "/" {
		c.Server.Prefix = ""
	}
	if c.Heuristics.ASCIIOnly == nil && c.Heuristics.ForeignScripts == nil {
		c.Heuristics.Heuristics = policy.Default()
	}
}

var localeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks the settings that would make a scan or the server fail.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LangDir) == "" {
		return errors.New("lang_dir must not be empty")
	}
	if strings.TrimSpace(c.SourceLocale) == "" {
		return errors.New("source_locale must not be empty")
	}
	if len(c.Locales) == 0 {
		return errors.New("at least one locale is required")
	}
	for _, l := range c.Locales {
		if !localeName.MatchString(l) {
			return fmt.Errorf("invalid locale %q", l)
		}
	}
	if c.Translator.Concurrency < 1 {
		return fmt.Errorf("translator.concurrency must be at least 1, got %d", c.Translator.Concurrency)
	}
	if c.Translator.Timeout < 0 || c.Translator.ConnectTimeout < 0 {
		return errors.New("translator timeouts must not be negative")
	}
	if c.Server.PerPage < 1 {
		return fmt.Errorf("server.per_page must be at least 1, got %d", c.Server.PerPage)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolved values
// ---------------------------------------------------------------------------

// LangPath returns the absolute lang directory.
func (c *Config) LangPath() string {
	return c.resolve(c.LangDir)
}

// SourcePaths returns the absolute scan roots.
func (c *Config) SourcePaths() []string {
	out := make([]string, 0, len(c.Paths))
	for _, p := range c.Paths {
		out = append(out, c.resolve(p))
	}
	return out
}

// Policy returns the effective translation policy heuristics.
func (c *Config) Policy() policy.Heuristics {
	if c.Heuristics.Derive {
		return c.Heuristics.Heuristics.Derive(c.Locales)
	}
	return c.Heuristics.Heuristics
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

// Marshal renders the configuration as YAML, for `transcan init`.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SplitList splits a comma-separated flag or variable value, dropping
// empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func trimAll(list []string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

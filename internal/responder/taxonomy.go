package responder

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

const maxTaxonomyFileSize = 1024 * 1024

// Common taxonomy errors.
var (
	ErrNoLocales            = errors.New("taxonomy declares no locales")
	ErrMissingDefaultLocale = errors.New("default locale has no table")
	ErrMissingResponse      = errors.New("category has no response")
	ErrUnsupportedFormat    = errors.New("unsupported taxonomy format")
)

// Taxonomy is the static keyword and response table, keyed by locale.
type Taxonomy struct {
	DefaultLocale string                  `koanf:"default_locale" toml:"default_locale" json:"default_locale"`
	Locales       map[string]*LocaleTable `koanf:"locales" toml:"locales" json:"locales"`
}

// LocaleTable holds one locale's categories and canned fallbacks.
type LocaleTable struct {
	// Categories are matched in declared order.
	Categories []Category `koanf:"categories" toml:"categories" json:"categories"`

	// Short is returned when nothing matches and the input is under 15 characters.
	Short string `koanf:"short" toml:"short" json:"short"`

	// Default is returned when nothing matches.
	Default string `koanf:"default" toml:"default" json:"default"`

	LearnedPrefix string `koanf:"learned_prefix" toml:"learned_prefix" json:"learned_prefix"`
	HistoryPrefix string `koanf:"history_prefix" toml:"history_prefix" json:"history_prefix"`
	ErrorMessage  string `koanf:"error_message" toml:"error_message" json:"error_message"`
}

// Category maps a set of keywords to one canned response.
type Category struct {
	Name     string   `koanf:"name" toml:"name" json:"name"`
	Keywords []string `koanf:"keywords" toml:"keywords" json:"keywords"`
	Response string   `koanf:"response" toml:"response" json:"response"`
}

// DefaultTaxonomy returns the built-in taxonomy (en, tr).
func DefaultTaxonomy() (*Taxonomy, error) {
	return parseYAML(defaultTaxonomy)
}

// LoadFile reads a taxonomy from a .yaml, .yml or .toml file and validates it.
func LoadFile(path string) (*Taxonomy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat taxonomy: %w", err)
	}
	if info.Size() > maxTaxonomyFileSize {
		return nil, fmt.Errorf("taxonomy file too large: %d bytes (max %d)", info.Size(), maxTaxonomyFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}

	var t *Taxonomy
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = parseYAML(content)
	case ".toml":
		t, err = parseTOML(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid taxonomy %s: %w", path, err)
	}
	return t, nil
}

func parseYAML(content []byte) (*Taxonomy, error) {
	k := koanf.New("/")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse taxonomy yaml: %w", err)
	}
	var t Taxonomy
	if err := k.Unmarshal("", &t); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	t.normalize()
	return &t, nil
}

func parseTOML(content []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := toml.Unmarshal(content, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy toml: %w", err)
	}
	t.normalize()
	return &t, nil
}

// normalize lower-cases locale keys and keywords so lookups can assume
// lower-cased input.
func (t *Taxonomy) normalize() {
	t.DefaultLocale = strings.ToLower(strings.TrimSpace(t.DefaultLocale))
	locales := make(map[string]*LocaleTable, len(t.Locales))
	for code, table := range t.Locales {
		if table == nil {
			continue
		}
		for i := range table.Categories {
			kws := table.Categories[i].Keywords
			for j := range kws {
				kws[j] = strings.ToLower(kws[j])
			}
		}
		locales[strings.ToLower(strings.TrimSpace(code))] = table
	}
	t.Locales = locales
}

// Validate checks that every locale is complete and that all locales share the
// same category names. A category without a response is rejected here so a
// malformed table never reaches Respond.
func (t *Taxonomy) Validate() error {
	if len(t.Locales) == 0 {
		return ErrNoLocales
	}
	if _, ok := t.Locales[t.DefaultLocale]; !ok {
		return fmt.Errorf("%w: %q", ErrMissingDefaultLocale, t.DefaultLocale)
	}

	want := t.Locales[t.DefaultLocale].categoryNames()
	for _, code := range t.LocaleCodes() {
		table := t.Locales[code]
		if strings.TrimSpace(table.Short) == "" {
			return fmt.Errorf("locale %q: short response is empty", code)
		}
		if strings.TrimSpace(table.Default) == "" {
			return fmt.Errorf("locale %q: default response is empty", code)
		}

		seen := make(map[string]bool, len(table.Categories))
		for _, c := range table.Categories {
			if c.Name == "" {
				return fmt.Errorf("locale %q: category without a name", code)
			}
			if seen[c.Name] {
				return fmt.Errorf("locale %q: duplicate category %q", code, c.Name)
			}
			seen[c.Name] = true
			if len(c.Keywords) == 0 {
				return fmt.Errorf("locale %q: category %q has no keywords", code, c.Name)
			}
			if strings.TrimSpace(c.Response) == "" {
				return fmt.Errorf("locale %q: %w: %q", code, ErrMissingResponse, c.Name)
			}
		}

		got := table.categoryNames()
		if strings.Join(got, ",") != strings.Join(want, ",") {
			return fmt.Errorf("locale %q: categories %v differ from default locale %v", code, got, want)
		}
	}
	return nil
}

// LocaleCodes returns the declared locale codes in sorted order.
func (t *Taxonomy) LocaleCodes() []string {
	codes := make([]string, 0, len(t.Locales))
	for code := range t.Locales {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (lt *LocaleTable) categoryNames() []string {
	names := make([]string, 0, len(lt.Categories))
	for _, c := range lt.Categories {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

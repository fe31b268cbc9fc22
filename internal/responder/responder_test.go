package responder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestResponder(t *testing.T) *Responder {
	t.Helper()
	r, err := NewDefault(zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestDefaultTaxonomy_IsValid(t *testing.T) {
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)
	require.NoError(t, tax.Validate())

	assert.Equal(t, "en", tax.DefaultLocale)
	assert.Equal(t, []string{"en", "tr"}, tax.LocaleCodes())
}

func TestDefaultTaxonomy_EveryCategoryHasResponse(t *testing.T) {
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)

	for code, table := range tax.Locales {
		for _, c := range table.Categories {
			assert.NotEmpty(t, c.Response, "locale %s category %s", code, c.Name)
		}
		assert.NotEmpty(t, table.LearnedPrefix, code)
		assert.NotEmpty(t, table.HistoryPrefix, code)
		assert.NotEqual(t, table.LearnedPrefix, table.HistoryPrefix, code)
	}
}

func TestRespond(t *testing.T) {
	r := newTestResponder(t)
	en := r.Taxonomy().Locales["en"]
	tr := r.Taxonomy().Locales["tr"]

	tests := []struct {
		name   string
		input  string
		locale string
		want   string
	}{
		{"price keyword", "what is your hourly rate?", "en", responseFor(en, "price")},
		{"first category wins", "hello, how much is a site?", "en", responseFor(en, "greeting")},
		{"short unmatched", "hi ok", "en", en.Short},
		{"long unmatched", "tell me something interesting please", "en", en.Default},
		{"turkish price", "fiyatlarınız ne kadar?", "tr", responseFor(tr, "price")},
		{"turkish short", "tamam", "tr", tr.Short},
		{"region subtag", "what is your hourly rate?", "en-US", responseFor(en, "price")},
		{"unknown locale falls back", "what is your hourly rate?", "de", responseFor(en, "price")},
		{"empty locale falls back", "hi ok", "", en.Short},
		{"input case ignored", "WHAT IS YOUR HOURLY RATE?", "en", responseFor(en, "price")},
		{"empty input", "", "en", en.Short},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Respond(tt.input, tt.locale)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}

func TestRespond_ShortCountsCharactersNotBytes(t *testing.T) {
	r := newTestResponder(t)
	tr := r.Taxonomy().Locales["tr"]

	// 13 runes, 24 bytes.
	input := "şşşşş ğğğ ııı"
	require.Less(t, len([]rune(input)), ShortInputLen)
	require.GreaterOrEqual(t, len(input), ShortInputLen)
	assert.Equal(t, tr.Short, r.Respond(input, "tr"))
}

func TestRespond_MissingResponseUsesDefault(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r, err := NewDefault(zap.New(core))
	require.NoError(t, err)

	en := r.Taxonomy().Locales["en"]
	for i := range en.Categories {
		if en.Categories[i].Name == "price" {
			en.Categories[i].Response = ""
		}
	}

	assert.Equal(t, en.Default, r.Respond("what is your hourly rate?", "en"))
	assert.Equal(t, 1, logs.FilterMessage("category has no response, using default").Len())
}

func TestResolveLocale(t *testing.T) {
	r := newTestResponder(t)
	assert.Equal(t, "tr", r.ResolveLocale("tr"))
	assert.Equal(t, "tr", r.ResolveLocale(" TR "))
	assert.Equal(t, "tr", r.ResolveLocale("tr_TR"))
	assert.Equal(t, "en", r.ResolveLocale("en-GB"))
	assert.Equal(t, "en", r.ResolveLocale("fr"))
	assert.Equal(t, "en", r.ResolveLocale(""))
}

func TestMarkers(t *testing.T) {
	r := newTestResponder(t)
	assert.NotEmpty(t, r.LearnedPrefix("en"))
	assert.NotEmpty(t, r.HistoryPrefix("tr"))
	assert.Contains(t, r.ErrorMessage("tr"), "Üzgünüm")
	assert.Equal(t, r.ErrorMessage("en"), r.ErrorMessage("xx"))
}

func TestValidate(t *testing.T) {
	valid := func() *Taxonomy {
		tax, err := DefaultTaxonomy()
		require.NoError(t, err)
		return tax
	}

	t.Run("no locales", func(t *testing.T) {
		assert.ErrorIs(t, (&Taxonomy{}).Validate(), ErrNoLocales)
	})

	t.Run("missing default locale", func(t *testing.T) {
		tax := valid()
		tax.DefaultLocale = "de"
		assert.ErrorIs(t, tax.Validate(), ErrMissingDefaultLocale)
	})

	t.Run("missing response", func(t *testing.T) {
		tax := valid()
		tax.Locales["tr"].Categories[0].Response = " "
		assert.ErrorIs(t, tax.Validate(), ErrMissingResponse)
	})

	t.Run("category sets differ", func(t *testing.T) {
		tax := valid()
		tax.Locales["tr"].Categories = tax.Locales["tr"].Categories[1:]
		err := tax.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "differ from default locale")
	})

	t.Run("empty short", func(t *testing.T) {
		tax := valid()
		tax.Locales["en"].Short = ""
		assert.Error(t, tax.Validate())
	})

	t.Run("duplicate category", func(t *testing.T) {
		tax := valid()
		cats := tax.Locales["en"].Categories
		cats[1].Name = cats[0].Name
		assert.Error(t, tax.Validate())
	})
}

const tomlTaxonomy = `
default_locale = "en"

[locales.en]
short = "Tell me more."
default = "Not sure."

[[locales.en.categories]]
name = "price"
keywords = ["PRICE", "cost"]
response = "It depends."
`

const yamlTaxonomy = `
default_locale: en
locales:
  en:
    short: "Tell me more."
    default: "Not sure."
    categories:
      - name: price
        keywords: ["price"]
        response: "It depends."
      - name: contact
        keywords: ["mail"]
        response: "Write to me."
`

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("toml", func(t *testing.T) {
		path := filepath.Join(dir, "taxonomy.toml")
		require.NoError(t, os.WriteFile(path, []byte(tomlTaxonomy), 0o600))

		tax, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, tax.Locales["en"].Categories, 1)
		assert.Equal(t, []string{"price", "cost"}, tax.Locales["en"].Categories[0].Keywords)
	})

	t.Run("yaml keeps declared order", func(t *testing.T) {
		path := filepath.Join(dir, "taxonomy.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlTaxonomy), 0o600))

		tax, err := LoadFile(path)
		require.NoError(t, err)
		cats := tax.Locales["en"].Categories
		require.Len(t, cats, 2)
		assert.Equal(t, "price", cats[0].Name)
		assert.Equal(t, "contact", cats[1].Name)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "taxonomy.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("invalid taxonomy", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("default_locale: en\nlocales: {}\n"), 0o600))

		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrNoLocales)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	r := newTestResponder(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locales: {}\n"), 0o600))

	require.Error(t, r.Reload(path))
	assert.Equal(t, []string{"en", "tr"}, r.Taxonomy().LocaleCodes())
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	r := newTestResponder(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlTaxonomy), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx, path))

	// Touch the file so the watcher sees a write.
	require.NoError(t, os.WriteFile(path, []byte(yamlTaxonomy+"\n"), 0o600))

	assert.Eventually(t, func() bool {
		return r.Respond("what is the price", "en") == "It depends."
	}, 5*time.Second, 20*time.Millisecond)
}

func responseFor(table *LocaleTable, category string) string {
	for _, c := range table.Categories {
		if c.Name == category {
			return c.Response
		}
	}
	return ""
}

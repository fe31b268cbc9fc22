// Package responder answers chat input from a static keyword taxonomy.
//
// It is the last stage of the matcher and must always produce an answer:
// unknown locales fall back to the taxonomy's default locale, and input that
// matches no category gets either the locale's "short" response (fewer than 15
// characters) or its "default" response.
//
// Categories are checked in the order they are declared; the first category
// with a keyword contained in the input wins. Keywords are plain substrings,
// so "rate" also matches "separate". Order categories from most to least
// specific.
//
// The taxonomy ships embedded (en, tr) and can be replaced from a YAML or TOML
// file, optionally hot-reloaded with Watch.
package responder

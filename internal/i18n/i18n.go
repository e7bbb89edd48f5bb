// ABOUTME: Translation lookup over the embedded en/es/it catalogues
// ABOUTME: Keys are dotted paths into nested JSON; English is the fallback language

// Package i18n translates labels used by documents, exports, and API clients.
package i18n

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultLanguage is used when a tag does not match any supported language.
const DefaultLanguage = "en"

// Locale describes one supported language.
type Locale struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var supported = []Locale{
	{Code: "en", Label: "English"},
	{Code: "es", Label: "Español"},
	{Code: "it", Label: "Italiano"},
}

type catalogue struct {
	nested map[string]any
	flat   map[string]string
}

var (
	loadOnce   sync.Once
	catalogues map[string]catalogue
	loadErr    error
)

func load() {
	catalogues = make(map[string]catalogue, len(supported))
	for _, l := range supported {
		data, err := localeFS.ReadFile("locales/" + l.Code + ".json")
		if err != nil {
			loadErr = fmt.Errorf("reading locale %s: %w", l.Code, err)
			return
		}
		var nested map[string]any
		if err := json.Unmarshal(data, &nested); err != nil {
			loadErr = fmt.Errorf("parsing locale %s: %w", l.Code, err)
			return
		}
		flat := make(map[string]string)
		flatten("", nested, flat)
		catalogues[l.Code] = catalogue{nested: nested, flat: flat}
	}
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}

func get(code string) catalogue {
	loadOnce.Do(load)
	if loadErr != nil {
		// embedded files are fixed at build time; tests catch this
		panic(loadErr)
	}
	return catalogues[code]
}

// Supported lists the supported languages in display order.
func Supported() []Locale {
	out := make([]Locale, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether code is exactly a supported base code.
func IsSupported(code string) bool {
	for _, l := range supported {
		if l.Code == code {
			return true
		}
	}
	return false
}

// Normalize maps a language tag such as "es-ES" or "it_IT" to a supported
// base code, falling back to English.
func Normalize(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(l, "-_"); i >= 0 {
		l = l[:i]
	}
	if IsSupported(l) {
		return l
	}
	return DefaultLanguage
}

// lookup finds key in lang, then in English.
func lookup(lang, key string) (string, bool) {
	if v, ok := get(Normalize(lang)).flat[key]; ok {
		return v, true
	}
	v, ok := get(DefaultLanguage).flat[key]
	return v, ok
}

// Tr returns the translation of key, falling back to English and then to the key itself.
func Tr(lang, key string) string {
	if v, ok := lookup(lang, key); ok {
		return v
	}
	return key
}

// TrDefault is Tr with an explicit fallback for keys missing everywhere.
func TrDefault(lang, key, fallback string) string {
	if v, ok := lookup(lang, key); ok {
		return v
	}
	return fallback
}

// T returns a translator bound to lang.
func T(lang string) func(string) string {
	return func(key string) string { return Tr(lang, key) }
}

// TranslateStatus returns the localized label of an invoice status.
// Unknown statuses are returned unchanged.
func TranslateStatus(lang, status string) string {
	return TrDefault(lang, "status."+status, status)
}

// Messages returns a copy of the nested catalogue for lang, for UIs that do
// their own lookups.
func Messages(lang string) map[string]any {
	return deepCopy(get(Normalize(lang)).nested)
}

// Keys returns every flattened key of the English catalogue, sorted.
func Keys() []string {
	flat := get(DefaultLanguage).flat
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopy(sub)
			continue
		}
		out[k] = v
	}
	return out
}

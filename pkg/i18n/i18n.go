// Package i18n translates user-facing messages.
//
// Catalogs are nested JSON objects flattened to dot keys, so
// {"errors": {"notFound": "..."}} is looked up as "errors.notFound".
// A key missing in the requested language falls back to English, and a key
// missing in English comes back unchanged.
//
//	localizer := i18n.NewLocalizer("tr")
//	msg := localizer.T("errors.notFound")
package i18n

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"sync"
)

// SupportedLanguages lists the languages with a catalog.
var SupportedLanguages = []string{"en", "tr"}

// DefaultLanguage is used for unknown languages and missing keys.
const DefaultLanguage = "en"

// translations is map[lang]map[key]message. It is written once by Load and
// only read afterwards.
var (
	translations map[string]map[string]string
	loadOnce     sync.Once
	loadErr      error
)

// Load reads <lang>.json for every supported language from localesFS.
// Only the first call does any work; later calls return its result.
func Load(localesFS fs.FS) error {
	loadOnce.Do(func() {
		loaded := make(map[string]map[string]string, len(SupportedLanguages))

		for _, lang := range SupportedLanguages {
			fileName := lang + ".json"

			data, err := fs.ReadFile(localesFS, fileName)
			if err != nil {
				loadErr = fmt.Errorf("failed to read translation file %s: %w", fileName, err)
				return
			}

			var nested map[string]any
			if err := json.Unmarshal(data, &nested); err != nil {
				loadErr = fmt.Errorf("failed to parse translation file %s: %w", fileName, err)
				return
			}

			flat := make(map[string]string)
			flattenMap("", nested, flat)
			loaded[lang] = flat

			log.Printf("[i18n] loaded %d keys for language: %s", len(flat), lang)
		}

		translations = loaded
	})

	return loadErr
}

// Localizer translates into one language.
type Localizer struct {
	lang string
}

// NewLocalizer returns a Localizer for lang, or for DefaultLanguage when
// lang has no catalog.
func NewLocalizer(lang string) *Localizer {
	lang = normalize(lang)
	if !isSupported(lang) {
		lang = DefaultLanguage
	}
	return &Localizer{lang: lang}
}

// Language returns the language the Localizer translates into.
func (l *Localizer) Language() string {
	return l.lang
}

// T returns the message for key.
func (l *Localizer) T(key string) string {
	if msg, ok := translations[l.lang][key]; ok {
		return msg
	}
	if msg, ok := translations[DefaultLanguage][key]; ok {
		return msg
	}
	return key
}

// TWithParams replaces {{name}} placeholders in the message for key.
//
//	localizer.TWithParams("errors.rateLimited", map[string]string{"seconds": "30"})
func (l *Localizer) TWithParams(key string, params map[string]string) string {
	msg := l.T(key)
	for k, v := range params {
		msg = strings.ReplaceAll(msg, "{{"+k+"}}", v)
	}
	return msg
}

// DetectLanguage picks the first supported language of an Accept-Language
// style list such as "tr-TR,tr;q=0.9,en;q=0.8". POSIX locales like
// "tr_TR.UTF-8" are accepted too.
func DetectLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		lang := normalize(strings.Split(part, ";")[0])
		if isSupported(lang) {
			return lang
		}
	}
	return DefaultLanguage
}

// ─── Helpers ───

// normalize turns "tr-TR", "tr_TR.UTF-8" and " TR " into "tr".
func normalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_."); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

func isSupported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// flattenMap turns nested objects into dot keys; non-string leaves are dropped.
func flattenMap(prefix string, src map[string]any, dst map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case string:
			dst[key] = val
		case map[string]any:
			flattenMap(key, val, dst)
		}
	}
}

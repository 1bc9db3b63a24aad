package i18n

import (
	"embed"
	"io/fs"
)

// EmbeddedLocales holds the catalogs under locales/, one JSON file per language.
//
//go:embed locales/*.json
var EmbeddedLocales embed.FS

// LoadEmbedded loads the catalogs compiled into the binary.
func LoadEmbedded() error {
	sub, err := fs.Sub(EmbeddedLocales, "locales")
	if err != nil {
		return err
	}
	return Load(sub)
}

// ABOUTME: Embeds the locale catalogues into the binary using go:embed
// ABOUTME: One nested JSON file per supported language

package i18n

import "embed"

//go:embed locales/*.json
var localeFS embed.FS

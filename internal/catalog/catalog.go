// Package catalog holds the localized user-facing messages the bridge sends
// through the CRM, grouped by language.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wirasena/kommobridge/internal/domain"
)

// Key identifies a localized user-facing message.
type Key string

const (
	PassportPrompt   Key = "passport_prompt"
	PassportInvalid  Key = "passport_invalid"
	PassportError    Key = "passport_error"
	PassportNotFound Key = "passport_not_found"
	PassportFound    Key = "passport_found"
)

// fallbackOrder fixes the language fallback chain after the requested
// language misses: English first, then any remaining translation.
var fallbackOrder = []domain.Language{domain.LanguageEnglish, domain.LanguageIndonesian}

var messages = map[Key]map[domain.Language]string{
	PassportPrompt: {
		domain.LanguageEnglish:    "Please enter your passport number",
		domain.LanguageIndonesian: "Silakan masukkan nomor paspor Anda",
	},
	PassportInvalid: {
		domain.LanguageEnglish:    "Invalid passport number format",
		domain.LanguageIndonesian: "Format nomor paspor tidak valid",
	},
	PassportError: {
		domain.LanguageEnglish:    "An error occurred while processing your passport number. Please try again later.",
		domain.LanguageIndonesian: "Terjadi kesalahan saat memproses nomor paspor Anda. Silakan coba lagi nanti.",
	},
	PassportNotFound: {
		domain.LanguageEnglish:    "Passport number not found in the database",
		domain.LanguageIndonesian: "Nomor paspor tidak ditemukan dalam database",
	},
	PassportFound: {
		domain.LanguageEnglish: "Passport found.\n\n" +
			"Voucher Code:\n{code_voucher}\n\n" +
			"Guest Name:\n{guest_name}\n\n" +
			"Arrival Date:\n{arrival_date}\n\n" +
			"Expired Date:\n{expired_date}",
		domain.LanguageIndonesian: "Paspor ditemukan.\n\n" +
			"Kode Voucher:\n{code_voucher}\n\n" +
			"Nama Tamu:\n{guest_name}\n\n" +
			"Tanggal Kedatangan:\n{arrival_date}\n\n" +
			"Tanggal Kedaluwarsa:\n{expired_date}",
	},
}

// Message returns the localized text for key. A missing translation falls
// back to English, then to the first registered translation, so lookups for
// a registered key never fail at runtime. An unregistered key is an error.
func Message(key Key, lang domain.Language) (string, error) {
	byLanguage, ok := messages[key]
	if !ok {
		return "", fmt.Errorf("no message configured for key %q", key)
	}
	if msg, ok := byLanguage[normalizeLanguage(lang)]; ok {
		return msg, nil
	}
	for _, fb := range fallbackOrder {
		if msg, ok := byLanguage[fb]; ok {
			return msg, nil
		}
	}
	// Unreachable with the catalog above; kept so a partially translated
	// key added later still resolves.
	for _, msg := range byLanguage {
		return msg, nil
	}
	return "", fmt.Errorf("no translations registered for key %q", key)
}

// Keys returns every registered message key.
func Keys() []Key {
	return []Key{PassportPrompt, PassportInvalid, PassportError, PassportNotFound, PassportFound}
}

func normalizeLanguage(lang domain.Language) domain.Language {
	cleaned := domain.Language(strings.ToUpper(strings.TrimSpace(string(lang))))
	switch cleaned {
	case domain.LanguageEnglish, domain.LanguageIndonesian:
		return cleaned
	}
	return domain.DefaultLanguage
}

var placeholderRE = regexp.MustCompile(`\{([a-z_]+)\}`)

// Render substitutes {placeholder} markers in a template with the given
// values. A marker without a value is an error so callers can fall back to
// the raw template text.
func Render(template string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholderRE.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unbound placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

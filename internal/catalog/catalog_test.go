package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirasena/kommobridge/internal/domain"
)

func TestMessageLocalized(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		lang domain.Language
		want string
	}{
		{"prompt english", PassportPrompt, domain.LanguageEnglish, "Please enter your passport number"},
		{"prompt indonesian", PassportPrompt, domain.LanguageIndonesian, "Silakan masukkan nomor paspor Anda"},
		{"invalid english", PassportInvalid, domain.LanguageEnglish, "Invalid passport number format"},
		{"invalid indonesian", PassportInvalid, domain.LanguageIndonesian, "Format nomor paspor tidak valid"},
		{"not found english", PassportNotFound, domain.LanguageEnglish, "Passport number not found in the database"},
		{"not found indonesian", PassportNotFound, domain.LanguageIndonesian, "Nomor paspor tidak ditemukan dalam database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Message(tt.key, tt.lang)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessageFallsBackToEnglish(t *testing.T) {
	tests := []struct {
		name string
		lang domain.Language
	}{
		{"empty language", ""},
		{"unknown language", "FR"},
		{"garbage", "??"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Message(PassportPrompt, tt.lang)
			require.NoError(t, err)
			assert.Equal(t, "Please enter your passport number", got)
		})
	}
}

func TestMessageNormalizesLanguage(t *testing.T) {
	got, err := Message(PassportPrompt, "id")
	require.NoError(t, err)
	assert.Equal(t, "Silakan masukkan nomor paspor Anda", got)

	got, err = Message(PassportPrompt, " en ")
	require.NoError(t, err)
	assert.Equal(t, "Please enter your passport number", got)
}

func TestMessageUnknownKey(t *testing.T) {
	_, err := Message(Key("does_not_exist"), domain.LanguageEnglish)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist")
}

func TestKeysAllResolveInBothLanguages(t *testing.T) {
	for _, key := range Keys() {
		for _, lang := range []domain.Language{domain.LanguageEnglish, domain.LanguageIndonesian} {
			msg, err := Message(key, lang)
			require.NoError(t, err, "key %s lang %s", key, lang)
			assert.NotEmpty(t, msg)
		}
	}
}

func TestRender(t *testing.T) {
	tpl, err := Message(PassportFound, domain.LanguageEnglish)
	require.NoError(t, err)

	out, err := Render(tpl, map[string]string{
		"code_voucher": "VC-123",
		"guest_name":   "JOHN DOE",
		"arrival_date": "2026-09-01",
		"expired_date": "2026-10-01",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Voucher Code:\nVC-123")
	assert.Contains(t, out, "Guest Name:\nJOHN DOE")
	assert.Contains(t, out, "Arrival Date:\n2026-09-01")
	assert.Contains(t, out, "Expired Date:\n2026-10-01")
	assert.NotContains(t, out, "{")
}

func TestRenderMissingPlaceholder(t *testing.T) {
	_, err := Render("Voucher: {code_voucher}", map[string]string{"guest_name": "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code_voucher")
}

func TestRenderNoPlaceholders(t *testing.T) {
	out, err := Render("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromAcceptLanguage(t *testing.T) {
	assert.Equal(t, "de", FromAcceptLanguage(""))
	assert.Equal(t, "de", FromAcceptLanguage("de-AT,de;q=0.9"))
	assert.Equal(t, "en", FromAcceptLanguage("en-US,en;q=0.9,de;q=0.5"))
	assert.Equal(t, "de", FromAcceptLanguage("fr-FR"))
}

func TestMessage_Fallback(t *testing.T) {
	assert.Equal(t, "This email address is already in use.", Message("en", "email_in_use", "x"))
	assert.Equal(t, "fallback", Message("en", "no_such_code", "fallback"))
	assert.Equal(t, "fallback", Message("fr", "email_in_use", "fallback"))
}

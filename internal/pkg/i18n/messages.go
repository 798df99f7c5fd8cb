package i18n

import (
	"golang.org/x/text/language"
)

// German is the primary language of the portal; English is offered as fallback.
var supported = []language.Tag{language.German, language.English}

var matcher = language.NewMatcher(supported)

// FromAcceptLanguage picks the best supported base language ("de" or "en") for an Accept-Language header.
func FromAcceptLanguage(header string) string {
	tags, _, _ := language.ParseAcceptLanguage(header)
	tag, _, _ := matcher.Match(tags...)
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		return "en"
	default:
		return "de"
	}
}

var catalog = map[string]map[string]string{
	"de": {
		"internal_error":              "Ein unerwarteter Fehler ist aufgetreten. Bitte versuchen Sie es später erneut.",
		"unavailable":                 "Der Dienst ist vorübergehend nicht erreichbar. Bitte versuchen Sie es erneut.",
		"not_authenticated":           "Bitte melden Sie sich an.",
		"session_revoked":             "Ihre Sitzung ist nicht mehr gültig. Bitte melden Sie sich erneut an.",
		"permission_denied":           "Sie haben keine Berechtigung für diese Aktion.",
		"invalid_scope":               "Ihr Konto ist keinem Unternehmen zugeordnet.",
		"invalid_credential":          "E-Mail oder Passwort ist falsch.",
		"unknown_user":                "Zu dieser E-Mail-Adresse existiert kein Konto.",
		"weak_password":               "Das Passwort ist zu schwach. Verwenden Sie mindestens 8 Zeichen mit Buchstaben, Ziffern und Sonderzeichen.",
		"email_in_use":                "Diese E-Mail-Adresse wird bereits verwendet.",
		"invalid_email":               "Bitte geben Sie eine gültige E-Mail-Adresse ein.",
		"rate_limited":                "Zu viele Anmeldeversuche. Bitte warten Sie einige Minuten.",
		"reset_token_invalid":         "Der Link zum Zurücksetzen des Passworts ist ungültig oder abgelaufen.",
		"missing_field":               "Bitte füllen Sie alle Pflichtfelder aus.",
		"invalid_field":               "Eine Eingabe ist ungültig.",
		"not_found":                   "Der Eintrag wurde nicht gefunden.",
		"invitation_not_found":        "Die Einladung wurde nicht gefunden.",
		"invitation_expired":          "Die Einladung ist abgelaufen. Bitten Sie Ihr Unternehmen um eine neue Einladung.",
		"invitation_already_accepted": "Die Einladung wurde bereits angenommen.",
		"invitation_pending_exists":   "Für diese E-Mail-Adresse existiert bereits eine offene Einladung.",
		"invitation_self":             "Sie können sich nicht selbst einladen.",
		"invitation_resend_too_soon":  "Eine Einladung kann nur einmal pro Tag erneut gesendet werden.",
		"invalid_status_transition":   "Abgeschlossene oder stornierte Aufträge können nicht mehr geändert werden.",
		"property_inactive":           "Das Objekt ist nicht mehr aktiv.",
		"assignee_not_in_company":     "Der Mitarbeiter gehört nicht zu Ihrem Unternehmen.",
		"invalid_time_range":          "Das Ende des Termins muss nach dem Beginn liegen.",
		"invitation_not_pending":      "Die Einladung ist nicht mehr offen.",
		"concurrent_update":           "Der Eintrag wurde zwischenzeitlich geändert. Bitte laden Sie die Ansicht neu.",
		"invalid_token":               "Das Zugriffstoken ist ungültig oder abgelaufen.",
	},
	"en": {
		"internal_error":              "An unexpected error occurred. Please try again later.",
		"unavailable":                 "The service is temporarily unavailable. Please try again.",
		"not_authenticated":           "Please sign in.",
		"session_revoked":             "Your session is no longer valid. Please sign in again.",
		"permission_denied":           "You are not allowed to perform this action.",
		"invalid_scope":               "Your account is not associated with any company.",
		"invalid_credential":          "Email or password is incorrect.",
		"unknown_user":                "There is no account for this email address.",
		"weak_password":               "The password is too weak. Use at least 8 characters with letters, digits and a special character.",
		"email_in_use":                "This email address is already in use.",
		"invalid_email":               "Please enter a valid email address.",
		"rate_limited":                "Too many sign-in attempts. Please wait a few minutes.",
		"reset_token_invalid":         "The password reset link is invalid or has expired.",
		"missing_field":               "Please fill in all required fields.",
		"invalid_field":               "One of the values is invalid.",
		"not_found":                   "The record was not found.",
		"invitation_not_found":        "The invitation was not found.",
		"invitation_expired":          "The invitation has expired. Ask your company for a new invitation.",
		"invitation_already_accepted": "The invitation has already been accepted.",
		"invitation_pending_exists":   "A pending invitation already exists for this email address.",
		"invitation_self":             "You cannot invite yourself.",
		"invitation_resend_too_soon":  "An invitation can only be resent once per day.",
		"invalid_status_transition":   "Completed or cancelled jobs can no longer be changed.",
		"property_inactive":           "The property is no longer active.",
		"assignee_not_in_company":     "The employee does not belong to your company.",
		"invalid_time_range":          "The appointment must end after it starts.",
		"invitation_not_pending":      "The invitation is no longer pending.",
		"concurrent_update":           "The record was changed in the meantime. Please reload.",
		"invalid_token":               "The access token is invalid or has expired.",
	},
}

// Message returns the localized message for code, or fallback when the catalog has none.
func Message(lang, code, fallback string) string {
	if msgs, ok := catalog[lang]; ok {
		if m, ok := msgs[code]; ok {
			return m
		}
	}
	return fallback
}

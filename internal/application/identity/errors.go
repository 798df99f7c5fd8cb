package identity

import "objektbetreuer-backend/internal/pkg/apperr"

var (
	ErrInvalidEmail      = apperr.New(apperr.KindValidation, "invalid_email", "Invalid Email")
	ErrWeakPassword      = apperr.New(apperr.KindValidation, "weak_password", "Password must be at least 8 characters and include a letter, a number and a special character")
	ErrEmailInUse        = apperr.New(apperr.KindConflict, "email_in_use", "Email is already in use")
	ErrInvalidCredential = apperr.New(apperr.KindAuthentication, "invalid_credential", "Incorrect Password")
	ErrUnknownUser       = apperr.New(apperr.KindAuthentication, "unknown_user", "No account exists for this email")
	ErrRateLimited       = apperr.New(apperr.KindRateLimited, "rate_limited", "Too many failed sign-in attempts")
	ErrResetTokenInvalid = apperr.New(apperr.KindValidation, "reset_token_invalid", "Password reset link is invalid or expired")
	ErrSessionRevoked    = apperr.New(apperr.KindAuthentication, "session_revoked", "Session is no longer valid")
)

package contacts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable machine readable codes surfaced at the API boundary.
const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeNotVerified        = "ACCOUNT_NOT_VERIFIED"
	TextCodeEmailTaken         = "EMAIL_ALREADY_USED"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenRevoked       = "TOKEN_REVOKED"
	TextCodeTokenPurpose       = "TOKEN_WRONG_PURPOSE"
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	TextCodeDataParseError     = "DATA_PARSE_ERROR"
	TextCodeAccountInactive    = "ACCOUNT_INACTIVE"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeContactDuplicate   = "CONTACT_DUPLICATE"
)

// ErrIdentityNotFound is returned when a subject cannot be resolved.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword covers both unknown identifiers and wrong
// passwords so callers cannot enumerate accounts.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotVerified rejects logins before the email flow completed.
var ErrAccountNotVerified = goerrors.New("account email is not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrAccountInactive rejects logins from suspended, disabled, or archived accounts.
var ErrAccountInactive = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeForbidden)

// ErrEmailTaken is returned on duplicate registration.
var ErrEmailTaken = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrTooManyLoginAttempts is the rate limited rejection.
var ErrTooManyLoginAttempts = goerrors.New("too many attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrTokenExpired marks structurally valid tokens past their window.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers failed signatures and unparseable payloads.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked marks consumed or logged-out token ids.
var ErrTokenRevoked = goerrors.New("token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenWrongPurpose rejects e.g. a refresh token presented as access.
var ErrTokenWrongPurpose = goerrors.New("token purpose is not valid for this operation", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenPurpose).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthorized is the guard rejection for protected routes.
var ErrUnauthorized = goerrors.New("authorization required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrStoreUnavailable flags credential store or registry I/O failures, the
// only member callers may treat as transient.
var ErrStoreUnavailable = goerrors.New("persistence is unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrUnableToFindSession is returned when a request has no session token.
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession covers undecodable session payloads.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToMapClaims is returned when claims cannot be extracted.
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToParseData is a generic parse failure.
var ErrUnableToParseData = goerrors.New("unable to parse data", goerrors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrContactDuplicate flags a contact whose email or phone already exists
// for the same owner.
var ErrContactDuplicate = goerrors.New("a contact with this email or phone already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeContactDuplicate).
	WithCode(goerrors.CodeConflict)

// IsTokenExpiredError will check for expired tokens, including legacy
// string-matched errors surfaced by the JWT library.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed token errors.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsTokenRevokedError reports whether err marks a revoked token id.
func IsTokenRevokedError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == TextCodeTokenRevoked
}

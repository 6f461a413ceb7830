package model

// User is a registered account. Accounts are keyed by email: signing in
// with a verification code for an unknown email creates one.
//
// WHY Avatar *string?
// An avatar is optional and the storage column is nullable. A nil pointer
// round-trips as NULL on both backends, whereas "" would be a real value.
type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Nickname  string  `json:"nickname"`
	Avatar    *string `json:"avatar"`
	CreatedAt string  `json:"createdAt"`
}

// UserUpdate lists the user fields that may be patched.
// id and created_at are immutable.
type UserUpdate struct {
	Email    Opt[string]  `json:"email"`
	Nickname Opt[string]  `json:"nickname"`
	Avatar   Opt[*string] `json:"avatar"`
}

// VerificationCode is a one-time sign-in code mailed to an email address.
//
// A code is usable only while Used is false and ExpiresAt is in the future.
// Used flips to true exactly once. Expired rows are never removed by the
// storage layer; they simply stop matching lookups.
type VerificationCode struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Code      string `json:"code"`
	ExpiresAt string `json:"expiresAt"`
	Used      bool   `json:"used"`
}

// Session backs an issued access token. The token string stored here is the
// JWT's "jti" claim, so revoking the row revokes the token.
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Token     string `json:"-"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

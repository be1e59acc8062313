// Package policy validates the shape of user-supplied credentials and identity fields.
package policy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 100
	NameMinLength     = 2
	NameMaxLength     = 100

	// PasswordSymbols is the set a password must draw at least one symbol from.
	PasswordSymbols = "@$!%*?&"
)

// Violation describes one broken rule.
type Violation struct {
	Code    string
	Message string
}

var (
	ViolationTooShort        = Violation{Code: "too_short", Message: "must be at least 8 characters"}
	ViolationTooLong         = Violation{Code: "too_long", Message: "must be at most 100 characters"}
	ViolationMissingLower    = Violation{Code: "missing_lower", Message: "must contain a lowercase letter"}
	ViolationMissingUpper    = Violation{Code: "missing_upper", Message: "must contain an uppercase letter"}
	ViolationMissingDigit    = Violation{Code: "missing_digit", Message: "must contain a digit"}
	ViolationMissingSymbol   = Violation{Code: "missing_symbol", Message: "must contain one of " + PasswordSymbols}
	ViolationNameLength      = Violation{Code: "name_length", Message: "must be between 2 and 100 characters"}
	ViolationNameCharacters  = Violation{Code: "name_characters", Message: "may only contain letters and spaces"}
	ViolationEmailRequired   = Violation{Code: "email_required", Message: "is required"}
	ViolationEmailFormat     = Violation{Code: "email_format", Message: "is not a valid email address"}
	ViolationEmailDisposable = Violation{Code: "email_disposable", Message: "disposable email domains are not accepted"}
)

// Messages flattens violations into their human readable messages.
func Messages(violations []Violation) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.Message
	}
	return out
}

// Password checks every password rule and reports all broken ones.
func Password(candidate string) []Violation {
	var violations []Violation
	length := utf8.RuneCountInString(candidate)
	if length < PasswordMinLength {
		violations = append(violations, ViolationTooShort)
	}
	if length > PasswordMaxLength {
		violations = append(violations, ViolationTooLong)
	}
	var lower, upper, digit, symbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	if !lower {
		violations = append(violations, ViolationMissingLower)
	}
	if !upper {
		violations = append(violations, ViolationMissingUpper)
	}
	if !digit {
		violations = append(violations, ViolationMissingDigit)
	}
	if !symbol {
		violations = append(violations, ViolationMissingSymbol)
	}
	return violations
}

// Name normalises a display name and checks its rules. The normalised value is
// returned even when violations are present.
func Name(candidate string) (string, []Violation) {
	name := strings.TrimSpace(norm.NFC.String(candidate))
	var violations []Violation
	length := utf8.RuneCountInString(name)
	if length < NameMinLength || length > NameMaxLength {
		violations = append(violations, ViolationNameLength)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.Is(unicode.Mn, r) || r == ' ' {
			continue
		}
		violations = append(violations, ViolationNameCharacters)
		break
	}
	return name, violations
}

// NormalizeEmail trims and case-folds an email address.
func NormalizeEmail(candidate string) string {
	return strings.ToLower(strings.TrimSpace(candidate))
}

// Validator checks email addresses against shape rules and a disposable-domain denylist.
type Validator struct {
	validate   *validator.Validate
	disposable map[string]struct{}
}

// New builds a Validator with the built-in denylist plus extra domains.
func New(extraDisposable ...string) *Validator {
	disposable := make(map[string]struct{}, len(defaultDisposableDomains)+len(extraDisposable))
	for _, d := range defaultDisposableDomains {
		disposable[d] = struct{}{}
	}
	for _, d := range extraDisposable {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			disposable[d] = struct{}{}
		}
	}
	return &Validator{validate: validator.New(), disposable: disposable}
}

// Email normalises an address and checks its shape and domain.
func (v *Validator) Email(candidate string) (string, []Violation) {
	email := NormalizeEmail(candidate)
	if email == "" {
		return email, []Violation{ViolationEmailRequired}
	}
	if err := v.validate.Var(email, "email"); err != nil {
		return email, []Violation{ViolationEmailFormat}
	}
	at := strings.LastIndexByte(email, '@')
	if v.IsDisposable(email[at+1:]) {
		return email, []Violation{ViolationEmailDisposable}
	}
	return email, nil
}

// IsDisposable reports whether domain, or any parent of it, is denylisted.
func (v *Validator) IsDisposable(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for domain != "" {
		if _, ok := v.disposable[domain]; ok {
			return true
		}
		dot := strings.IndexByte(domain, '.')
		if dot < 0 {
			return false
		}
		domain = domain[dot+1:]
	}
	return false
}

var defaultDisposableDomains = []string{
	"10minutemail.com",
	"discard.email",
	"dispostable.com",
	"fakeinbox.com",
	"getnada.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"mailinator.com",
	"maildrop.cc",
	"mintemail.com",
	"mohmal.com",
	"sharklasers.com",
	"temp-mail.org",
	"tempmail.com",
	"throwawaymail.com",
	"trashmail.com",
	"yopmail.com",
}

package validation

import (
	"regexp"
	"strings"
)

// Allow-list patterns per field kind. These match the formats the original
// registration forms accept; anything outside them is rejected, which is what
// keeps statement metacharacters out of every string field with a pattern.
var (
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern   = regexp.MustCompile(`^[a-z0-9]+$`)
	namePattern       = regexp.MustCompile(`^[A-Za-z][A-Za-z' -]*$`)
	textPattern       = regexp.MustCompile(`^[A-Za-z0-9 .,'&/-]*$`)
	zipCodePattern    = regexp.MustCompile(`^\d{4}[A-Z]{2}$`)
	phonePattern      = regexp.MustCompile(`^\d{8}$`)
	licencePattern9   = regexp.MustCompile(`^[A-Z]{2}\d{7}$`)
	licencePattern10  = regexp.MustCompile(`^[A-Z]\d{8}$`)
	serialPattern     = regexp.MustCompile(`^[a-zA-Z0-9]{10,17}$`)
	coordinatePattern = regexp.MustCompile(`^-?\d{1,3}\.\d{5}$`)
	isoDatePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	passwordSpecial = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};:"\\|,.<>/?]`)
)

// hasRepeatedRun reports whether s contains three identical consecutive
// characters. RE2 has no backreferences, so this is a plain loop.
func hasRepeatedRun(s string) bool {
	runes := []rune(s)
	for i := 2; i < len(runes); i++ {
		if runes[i] == runes[i-1] && runes[i] == runes[i-2] {
			return true
		}
	}
	return false
}

// Cities the service operates in. A closed list, not a format check.
var Cities = []string{
	"Amsterdam", "Rotterdam", "Utrecht", "Eindhoven", "Tilburg",
	"Groningen", "Almere", "Breda", "Nijmegen", "Haarlem",
}

// Usernames that may never be registered regardless of format.
var forbiddenUsernames = map[string]struct{}{
	"admin": {}, "administrator": {}, "root": {}, "system": {}, "guest": {},
	"user": {}, "test": {}, "demo": {}, "null": {}, "undefined": {}, "anonymous": {},
}

// sqlSuspectFragments are substrings whose presence in rejected input marks
// the audit event suspicious. They are a flagging heuristic for the review
// queue, not the protection mechanism; safety comes from allow-lists and
// parameterized statements.
var sqlSuspectFragments = []string{
	"select", "insert", "update", "delete", "drop", "union",
	"--", ";", "/*", "*/", "'", "xp_", "sp_",
	"<script", "javascript:", "onload=", "onerror=",
}

func looksSuspicious(raw string) bool {
	lower := strings.ToLower(raw)
	for _, frag := range sqlSuspectFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

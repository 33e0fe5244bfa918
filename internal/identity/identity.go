// Package identity resolves WhatsApp chat identifiers to stable phone keys.
// Chat ids are provider-assigned and can churn; the normalized phone number
// derived here is stored alongside metadata so records survive reassignment.
package identity

import "strings"

// Address suffixes used by the provider to mark address classes.
const (
	UserSuffix       = "@c.us"
	GroupSuffix      = "@g.us"
	BroadcastSuffix  = "@broadcast"
	NewsletterSuffix = "@newsletter"
)

// NormalizePhone strips every non-digit character from raw, keeping a single
// leading "+" if present. Returns "" when no digits remain. Two numbers that
// differ only in spaces, dashes or parentheses normalize identically.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(s, "+")
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if hasPlus {
		return "+" + digits
	}
	return digits
}

// PhoneFromChatID extracts the normalized phone key from a chat id.
// Returns "" for group, broadcast and channel addresses, and for synthetic
// ids whose local part contains a dash (legacy group ids).
func PhoneFromChatID(chatID string) string {
	if chatID == "" {
		return ""
	}
	if strings.Contains(chatID, GroupSuffix) ||
		strings.Contains(chatID, BroadcastSuffix) ||
		strings.Contains(chatID, NewsletterSuffix) {
		return ""
	}
	local, _, _ := strings.Cut(chatID, "@")
	if strings.Contains(local, "-") {
		return ""
	}
	return NormalizePhone(local)
}

// SynthesizeChatID builds a provider-style user chat id from a bare phone
// number, keeping only digits and a leading "+". Returns "" when nothing
// phone-like remains. Inputs already carrying an address suffix are
// returned as-is.
func SynthesizeChatID(raw string) string {
	if strings.Contains(raw, "@") {
		return raw
	}
	var b strings.Builder
	for i, r := range raw {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + UserSuffix
}

// Package intent implements the cheap, rule-based classifiers that run
// before any retrieval or generation: social/courtesy detection, contact
// information detection, keyword extraction, and topic-based source
// filtering. All tables are immutable package data loaded once; there is no
// runtime mutation.
package intent

import (
	"regexp"
	"strings"

	"github.com/medifestructuras/asistente/internal/textutil"
)

// Kind is the tagged intent variant for an incoming message. The
// orchestrator's transition order is ContactShare > Greeting/Courtesy >
// InformationRequest.
type Kind int

const (
	// InformationRequest means no short-circuit applies; the message must
	// flow through retrieval and generation.
	InformationRequest Kind = iota

	// ContactShare means the message itself carries an email or phone
	// number and should be acknowledged without retrieval.
	ContactShare

	// Greeting is a social message answered verbatim from the greeting
	// table, without the contact-channel suffix.
	Greeting

	// Courtesy is any other canned social reply (thanks, acknowledgement,
	// farewell); the orchestrator appends the contact-channel suffix.
	Courtesy
)

// Classification is the result of classifying one message.
type Classification struct {
	Kind  Kind
	Reply string // canned reply for Greeting/Courtesy, empty otherwise
}

// Classify runs the full intent decision for a raw message, in priority
// order: contact share first, then social short-circuit, then information
// request. The normalized form must come from textutil.Normalize.
func Classify(message, normalized string) Classification {
	if LooksLikeContact(message) {
		return Classification{Kind: ContactShare}
	}
	if reply, ok := DetectSocialReply(message); ok {
		kind := Courtesy
		if IsGreeting(normalized) {
			kind = Greeting
		}
		return Classification{Kind: kind, Reply: reply}
	}
	return Classification{Kind: InformationRequest}
}

// DetectSocialReply returns the canned reply for a greeting, thanks,
// acknowledgement or farewell, or ok=false when the message should flow to
// retrieval. Exact table lookup happens first; courtesy patterns only apply
// when the message carries no question mark and no informative marker.
func DetectSocialReply(message string) (reply string, ok bool) {
	normalized := textutil.Normalize(message)
	if r, found := socialReplies[normalized]; found {
		return r, true
	}
	return matchCourtesyPattern(message, normalized)
}

// matchCourtesyPattern scans the ordered pattern list and returns the first
// reply whose every keyword is contained in the normalized message.
func matchCourtesyPattern(message, normalized string) (string, bool) {
	if strings.ContainsAny(message, "?¿") {
		return "", false
	}
	for _, marker := range informativeMarkers {
		if strings.Contains(normalized, marker) {
			return "", false
		}
	}
	for _, p := range courtesyPatterns {
		if containsAll(normalized, p.keywords) {
			return p.reply, true
		}
	}
	return "", false
}

func containsAll(s string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(s, kw) {
			return false
		}
	}
	return true
}

// IsGreeting reports whether a normalized message is a plain greeting.
// Greeting replies are sent as-is; other canned replies get the
// contact-channel suffix appended downstream.
func IsGreeting(normalized string) bool {
	_, ok := greetingKeywords[normalized]
	return ok
}

// LooksLikeContact reports whether the raw message appears to contain an
// email address or a phone number. This is a trigger for the
// acknowledgement path, not a validation gate: a token holding both "@" and
// "." counts as an email, and 6+ digits anywhere count as a phone number.
func LooksLikeContact(message string) bool {
	cleaned := strings.NewReplacer(",", " ", ";", " ").Replace(message)
	for _, token := range strings.Fields(cleaned) {
		if strings.Contains(token, "@") && strings.Contains(token, ".") {
			return true
		}
	}
	digits := 0
	for _, r := range message {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 6
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// ExtractKeywords tokenizes a message into deduplicated content keywords,
// preserving first-occurrence order. Interrogative stop-words are dropped;
// a token survives if it has 5+ characters, or if the original token was
// fully upper-case with 3+ characters (acronym heuristic, e.g. "CYPE").
func ExtractKeywords(message string) []string {
	tokens := tokenPattern.FindAllString(message, -1)
	seen := make(map[string]struct{}, len(tokens))
	var keywords []string
	for _, token := range tokens {
		normalized := strings.ToLower(token)
		if _, stop := questionWords[normalized]; stop {
			continue
		}
		if len(normalized) < 5 && !(isUpper(token) && len(normalized) >= 3) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		keywords = append(keywords, normalized)
	}
	return keywords
}

// isUpper reports whether a token contains at least one letter and no
// lower-case letters (digits are ignored, matching "SAP2000"-like tokens).
func isUpper(token string) bool {
	hasLetter := false
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		}
	}
	return hasLetter
}

// InferSourceFilters returns the source-path prefixes whose trigger
// keywords appear in the normalized message. The filters are advisory: an
// empty slice means the similarity search runs unfiltered.
func InferSourceFilters(normalized string) []string {
	var filters []string
	for _, entry := range sourceIntentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(normalized, kw) {
				filters = append(filters, entry.prefix)
				break
			}
		}
	}
	return filters
}

// IsCourseRequest reports whether the normalized message shows
// course-related intent, which triggers the course-overview injection.
func IsCourseRequest(normalized string) bool {
	for _, kw := range courseIntentKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

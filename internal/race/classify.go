package race

import "strings"

// Type is the closed taxonomy of race-condition classifications.
type Type string

const (
	// TypeNone means the failure matched no signature (generic failure).
	TypeNone               Type = ""
	TypeAcceptFirst        Type = "accept_first_error"
	TypeConnectionTimeout  Type = "connection_timeout"
	TypeServiceNotReady    Type = "service_not_ready"
	TypeAuthTiming         Type = "auth_timing"
	TypeReadinessRace      Type = "readiness_race"
	TypeConcurrentConflict Type = "concurrent_conflict"
)

// signature maps error-message substrings to a classification. The table
// is evaluated top to bottom and the first match wins; that order is the
// authoritative tie-break when a message could match more than one entry.
type signature struct {
	substrings []string
	race       Type
}

var signatures = []signature{
	{[]string{"need to call accept first"}, TypeAcceptFirst},
	{[]string{"1011", "connection closed before"}, TypeServiceNotReady},
	{[]string{"timeout"}, TypeConnectionTimeout},
	{[]string{"502", "503", "server error"}, TypeServiceNotReady},
	{[]string{"auth", "unauthorized", "401", "403", "forbidden"}, TypeAuthTiming},
	{[]string{"redis"}, TypeReadinessRace},
}

// Classify maps an error message to a race-condition type. Matching is
// case-insensitive; an unmatched message classifies as TypeNone.
func Classify(message string) Type {
	msg := strings.ToLower(message)
	for _, sig := range signatures {
		for _, sub := range sig.substrings {
			if strings.Contains(msg, sub) {
				return sig.race
			}
		}
	}
	return TypeNone
}

// Package naturalkey derives stable identity keys for imported entities.
// Resolution is a pure function of the input record: no database access, no
// ambiguity guessing. Records that cannot produce a key fail closed.
package naturalkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one entity across re-imports, independent of surrogate IDs.
// Keys are prefixed by entity kind so one map can hold all of them.
type Key string

var ErrUnresolvable = fmt.Errorf("natural key unresolvable")

// canonicalSuffixes maps the spellings a club suffix shows up under in the
// source data to one canonical form, so "Example CC" and "Example Country
// Club" resolve to the same club.
var canonicalSuffixes = map[string]string{
	"cc":           "cc",
	"c-c":          "cc",
	"country-club": "cc",
	"countryclub":  "cc",
	"sc":           "sc",
	"s-c":          "sc",
	"sports-club":  "sc",
	"sportsclub":   "sc",
	"tc":           "tc",
	"t-c":          "tc",
	"tennis-club":  "tc",
	"tennisclub":   "tc",
}

// Club resolves a club record to its league-scoped canonical key.
func Club(leagueID int64, name string) (Key, error) {
	canon := CanonicalClubName(name)
	if canon == "" {
		return "", fmt.Errorf("%w: club name %q is empty after normalization", ErrUnresolvable, name)
	}
	return Key("club|" + strconv.FormatInt(leagueID, 10) + "|" + canon), nil
}

// Series resolves a series record to its league-scoped canonical key.
func Series(leagueID int64, name string) (Key, error) {
	canon := Canonicalize(name)
	if canon == "" {
		return "", fmt.Errorf("%w: series name %q is empty after normalization", ErrUnresolvable, name)
	}
	return Key("series|" + strconv.FormatInt(leagueID, 10) + "|" + canon), nil
}

// Team keys are the (club, series) pair; the league is already embedded in
// both parts.
func Team(clubKey, seriesKey Key) (Key, error) {
	if clubKey == "" || seriesKey == "" {
		return "", fmt.Errorf("%w: team requires club and series keys", ErrUnresolvable)
	}
	return Key("team|" + string(clubKey) + "|" + string(seriesKey)), nil
}

// Player uses the source-assigned external identifier verbatim. A record
// without one is excluded, never guessed.
func Player(leagueID int64, externalID string) (Key, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return "", fmt.Errorf("%w: player record has no external id", ErrUnresolvable)
	}
	return Key("player|" + strconv.FormatInt(leagueID, 10) + "|" + externalID), nil
}

// Match keys the append-only result stream by the source's match identifier.
func Match(leagueID int64, sourceID string) (Key, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return "", fmt.Errorf("%w: match record has no source id", ErrUnresolvable)
	}
	return Key("match|" + strconv.FormatInt(leagueID, 10) + "|" + sourceID), nil
}

// CanonicalClubName normalizes a club display name and collapses known
// suffix spellings ("Country Club", "CC", ...) to their canonical form.
func CanonicalClubName(name string) string {
	canon := Canonicalize(name)
	if canon == "" {
		return ""
	}

	for variant, suffix := range canonicalSuffixes {
		if canon == variant {
			// The whole name is a suffix token; leave it alone.
			break
		}
		if strings.HasSuffix(canon, "-"+variant) {
			return strings.TrimSuffix(canon, "-"+variant) + "-" + suffix
		}
	}

	return canon
}

// Canonicalize lower-cases the value and joins alphanumeric runs with single
// dashes, the same folding the sync pipeline applies to team names.
func Canonicalize(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var builder strings.Builder
	lastDash := false
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			builder.WriteByte('-')
			lastDash = true
		}
	}

	return strings.Trim(builder.String(), "-")
}

package naturalkey

import (
	"errors"
	"testing"
)

func TestClub_SuffixVariantsResolveIdentically(t *testing.T) {
	t.Parallel()

	variants := []string{
		"Example CC",
		"Example Country Club",
		"example country club",
		"EXAMPLE C.C.",
	}

	want, err := Club(1, "Example CC")
	if err != nil {
		t.Fatalf("Club error: %v", err)
	}

	for _, name := range variants {
		got, err := Club(1, name)
		if err != nil {
			t.Fatalf("Club(%q) error: %v", name, err)
		}
		if got != want {
			t.Fatalf("Club(%q)=%q, want %q", name, got, want)
		}
	}
}

func TestClub_DistinctNamesStayDistinct(t *testing.T) {
	t.Parallel()

	a, err := Club(1, "Riverside CC")
	if err != nil {
		t.Fatalf("Club error: %v", err)
	}
	b, err := Club(1, "Riverside Sports Club")
	if err != nil {
		t.Fatalf("Club error: %v", err)
	}
	if a == b {
		t.Fatalf("different suffix families must not collide: %q", a)
	}

	c, err := Club(2, "Riverside CC")
	if err != nil {
		t.Fatalf("Club error: %v", err)
	}
	if a == c {
		t.Fatalf("keys must be league scoped: %q", a)
	}
}

func TestPlayer_FailsClosedWithoutExternalID(t *testing.T) {
	t.Parallel()

	if _, err := Player(1, "  "); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}

	key, err := Player(1, " p-100 ")
	if err != nil {
		t.Fatalf("Player error: %v", err)
	}
	if key != Key("player|1|p-100") {
		t.Fatalf("unexpected player key %q", key)
	}
}

func TestTeam_RequiresBothParents(t *testing.T) {
	t.Parallel()

	clubKey, _ := Club(1, "Example CC")
	seriesKey, _ := Series(1, "Division 1")

	if _, err := Team(clubKey, ""); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}

	key, err := Team(clubKey, seriesKey)
	if err != nil {
		t.Fatalf("Team error: %v", err)
	}
	if key != Key("team|"+string(clubKey)+"|"+string(seriesKey)) {
		t.Fatalf("unexpected team key %q", key)
	}
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"  Division 1 ", "division-1"},
		{"A/B  Group", "a-b-group"},
		{"---", ""},
		{"Ünicode Club", "nicode-club"},
	}

	for _, tc := range cases {
		if got := Canonicalize(tc.in); got != tc.want {
			t.Fatalf("Canonicalize(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

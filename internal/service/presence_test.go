package service

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"poke-arena/internal/domain"
	"poke-arena/internal/metrics"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

func newTestPresence() (*PresenceTracker, *time.Time) {
	p := NewPresenceTracker(testConfig(), metrics.New(), zerolog.Nop())
	clock := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return clock }
	return p, &clock
}

func participantIDs(participants []domain.Participant) []string {
	out := make([]string, len(participants))
	for i, p := range participants {
		out[i] = p.ID
	}
	sort.Strings(out)
	return out
}

func TestPresenceListOthersExpires(t *testing.T) {
	p, clock := newTestPresence()

	p.Touch("x", "X")
	p.Touch("y", "Y")
	p.Touch("z", "Z")

	if got := participantIDs(p.ListOthers("x")); len(got) != 2 || got[0] != "y" || got[1] != "z" {
		t.Fatalf("ListOthers = %v, want [y z]", got)
	}

	*clock = clock.Add(3 * time.Minute)
	p.Touch("y", "Y")
	p.Touch("x", "X")
	*clock = clock.Add(3 * time.Minute)

	if got := participantIDs(p.ListOthers("x")); len(got) != 1 || got[0] != "y" {
		t.Fatalf("after 6 minutes ListOthers = %v, want [y]", got)
	}
	if p.Size() != 2 {
		t.Fatalf("Size = %d, want 2", p.Size())
	}
}

func TestPresenceTouchUpserts(t *testing.T) {
	p, _ := newTestPresence()

	p.Touch("ash", "Ash")
	p.Touch("ash", "Ash Ketchum")
	others := p.ListOthers("")
	if len(others) != 1 || others[0].Name != "Ash Ketchum" {
		t.Fatalf("touch should upsert, got %+v", others)
	}

	p.Remove("ash")
	p.Remove("ash")
	if p.Size() != 0 {
		t.Fatalf("Size after remove = %d", p.Size())
	}
}

func TestPresenceSnapshot(t *testing.T) {
	p, clock := newTestPresence()

	p.Touch("old", "Old")
	*clock = clock.Add(90 * time.Second)
	p.Touch("new", "New")

	snap := p.Snapshot()
	if snap.Total != 2 || snap.Users[0].UserID != "new" || snap.Users[1].SecondsAgo != 90 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestPresenceExpiryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("records older than the ttl are never listed", prop.ForAll(
		func(ages []int) bool {
			p, clock := newTestPresence()
			start := *clock
			live := 0
			for i, age := range ages {
				*clock = start.Add(-time.Duration(age) * time.Second)
				p.Touch(fmt.Sprintf("user%d", i), "user")
				if time.Duration(age)*time.Second <= 5*time.Minute {
					live++
				}
			}
			*clock = start
			return p.Size() == live && len(p.ListOthers("")) == live
		},
		gen.SliceOfN(40, gen.IntRange(0, 600)),
	))

	properties.TestingRun(t)
}

func TestPresenceDisplayName(t *testing.T) {
	p, clock := newTestPresence()

	if _, ok := p.DisplayName("misty"); ok {
		t.Fatalf("unknown user reported online")
	}
	p.Touch("misty", "Misty")
	if name, ok := p.DisplayName("misty"); !ok || name != "Misty" {
		t.Fatalf("DisplayName = %q, %v", name, ok)
	}

	*clock = clock.Add(6 * time.Minute)
	if _, ok := p.DisplayName("misty"); ok {
		t.Fatalf("expired user reported online")
	}
}

package cli

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rapport/internal/domain/model"
)

// kindMix is the relative frequency of each generated event kind.
var kindMix = []struct {
	kind   model.EventKind
	weight int
}{
	{model.KindCompleteGig, 35},
	{model.KindCommunityPost, 25},
	{model.KindPeerEndorsement, 15},
	{model.KindMentorSession, 10},
	{model.KindNoShow, 7},
	{model.KindProfileCompleted, 5},
	{model.KindPolicyViolation, 3},
}

// GeneratorConfig shapes a synthetic event load.
type GeneratorConfig struct {
	Events   int
	Subjects int
	// MaxAge spreads occurrence times over the window before Now so that
	// decay has something to act on.
	MaxAge time.Duration
	Seed   uint64
	Now    time.Time
}

// GenerateEvents builds cfg.Events events over cfg.Subjects subjects. Values
// are left zero so the server applies the configured points of each kind.
// The same seed yields the same subjects, kinds and times.
func GenerateEvents(cfg GeneratorConfig) []Event {
	if cfg.Events <= 0 {
		return nil
	}
	if cfg.Subjects <= 0 {
		cfg.Subjects = 1
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	total := 0
	for _, k := range kindMix {
		total += k.weight
	}

	events := make([]Event, cfg.Events)
	for i := range events {
		ev := Event{
			EventID:   uuid.NewString(),
			SubjectID: SubjectID(rng.IntN(cfg.Subjects)),
			Kind:      string(pickKind(rng.IntN(total))),
		}
		if cfg.MaxAge > 0 {
			age := time.Duration(rng.Int64N(int64(cfg.MaxAge)))
			ev.OccurredAt = cfg.Now.Add(-age).UTC().Format(time.RFC3339)
		}
		events[i] = ev
	}
	return events
}

// SubjectID names the i-th generated subject.
func SubjectID(i int) string {
	return fmt.Sprintf("subject-%04d", i)
}

func pickKind(n int) model.EventKind {
	for _, k := range kindMix {
		if n < k.weight {
			return k.kind
		}
		n -= k.weight
	}
	return kindMix[0].kind
}

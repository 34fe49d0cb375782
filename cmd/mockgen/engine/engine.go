package engine

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"discotrack/internal/eventlog"
)

type GeneratorConfig struct {
	Scenario     string // "mild", "chaos" or "drift"
	Distribution string // "uniform" or "weibull"
	Count        int
	Now          time.Time
	Seed         uint64
}

var (
	assignees    = []string{"Ana Ruiz", "Ben Okafor", "Chen Wei", "Dana Levi"}
	complexities = []string{"S", "M", "L", "XL"}
	terminals    = []string{"Build", "Build", "Build", "Beta", "Live", "Won't Do"}
)

// issueBuilder accumulates the changelog of one synthetic issue.
type issueBuilder struct {
	key      string
	status   string
	health   string
	assignee string
	events   []eventlog.ChangeEvent
}

func (b *issueBuilder) change(field eventlog.Field, to string, at time.Time) {
	var from string
	switch field {
	case eventlog.FieldStatus:
		from, b.status = b.status, to
	case eventlog.FieldHealth:
		from, b.health = b.health, to
	case eventlog.FieldAssignee:
		from, b.assignee = b.assignee, to
	}
	b.events = append(b.events, eventlog.ChangeEvent{
		IssueKey:  b.key,
		Field:     field,
		FromValue: from,
		ToValue:   to,
		Timestamp: at.UnixMicro(),
		Author:    "mockgen",
	})
}

// Generate produces one issue log per issue, arriving roughly one per day up
// to cfg.Now. Most issues run a discovery cycle that ends in a terminal status;
// some are still in discovery, some never enter it and a few skip it.
func Generate(cfg GeneratorConfig) []eventlog.IssueLog {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	cfg.Now = cfg.Now.UTC()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	logs := make([]eventlog.IssueLog, 0, cfg.Count)
	firstArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		key := fmt.Sprintf("DISC-%d", i+1)
		created := firstArrival.Add(time.Duration(i*24) * time.Hour)
		b := &issueBuilder{key: key, status: "Parking Lot", health: "On track", assignee: assignees[rng.IntN(len(assignees))]}
		baseline := eventlog.Baseline{Timestamp: created.UnixMicro(), Status: b.status, Health: b.health, Assignee: b.assignee}

		k, lambda := 2.5, 20.0
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			lambda = 25.0
		case "drift":
			ratio := float64(i) / float64(max(cfg.Count, 1))
			k = 2.5 - 1.7*ratio
			lambda = 20.0 + 10.0*ratio
		}

		var duration float64
		if cfg.Distribution == "weibull" {
			duration = weibullSample(rng, k, lambda)
		} else {
			duration = 10.0 + rng.Float64()*20.0
			if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
				duration += 30 + rng.Float64()*40
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				duration *= 2.0
			}
		}

		roll := rng.Float64()
		enter := created.Add(time.Duration(1+rng.IntN(72)) * time.Hour)
		switch {
		case roll < 0.05:
			// never enters discovery
		case roll < 0.10:
			// parked, then pulled straight into build
			for n, status := range []string{"Discovery", "Parking Lot", "Build"} {
				if t := enter.AddDate(0, 0, 2*n); t.Before(cfg.Now) {
					b.change(eventlog.FieldStatus, status, t)
				}
			}
		default:
			if enter.Before(cfg.Now) {
				b.change(eventlog.FieldStatus, "Discovery", enter)
				runCycle(rng, b, enter, duration, cfg.Now)
			}
		}

		slices.SortStableFunc(b.events, func(x, y eventlog.ChangeEvent) int {
			return cmp.Compare(x.Timestamp, y.Timestamp)
		})

		snap := eventlog.IssueSnapshot{
			Key:        key,
			IssueType:  "Idea",
			Status:     b.status,
			Health:     b.health,
			Assignee:   b.assignee,
			Complexity: complexities[rng.IntN(len(complexities))],
			Created:    created,
			Updated:    created,
		}
		if n := len(b.events); n > 0 {
			snap.Updated = b.events[n-1].Time()
		}
		logs = append(logs, eventlog.IssueLog{Snapshot: snap, Baseline: baseline, Events: b.events})
	}
	return logs
}

// runCycle walks an issue through discovery for duration days, adding on-hold
// periods, parking and reassignment along the way.
func runCycle(rng *rand.Rand, b *issueBuilder, enter time.Time, duration float64, now time.Time) {
	end := enter.Add(time.Duration(duration * 24 * float64(time.Hour)))
	step := func(frac float64) time.Time {
		return enter.Add(time.Duration(frac * duration * 24 * float64(time.Hour)))
	}

	if rng.Float64() < 0.4 {
		if t := step(0.2 + rng.Float64()*0.2); t.Before(now) {
			b.change(eventlog.FieldHealth, "On Hold", t)
			if t := step(0.5); t.Before(now) {
				b.change(eventlog.FieldHealth, "On track", t)
			}
		}
	}
	if rng.Float64() < 0.25 {
		if t := step(0.6); t.Before(now) {
			b.change(eventlog.FieldStatus, "Parking Lot", t)
			if t := step(0.7); t.Before(now) {
				b.change(eventlog.FieldStatus, "Validation", t)
			}
		}
	}
	if rng.Float64() < 0.3 {
		if t := step(0.3); t.Before(now) {
			b.change(eventlog.FieldAssignee, assignees[rng.IntN(len(assignees))], t)
		}
	}
	if end.Before(now) && b.status != "Parking Lot" {
		b.change(eventlog.FieldStatus, terminals[rng.IntN(len(terminals))], end)
	}
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes the logs in the issue-log cache format read by `discotrack recompute`.
func Save(outDir string, sourceID string, logs []eventlog.IssueLog) error {
	store := eventlog.NewEventStore()
	for _, l := range logs {
		store.Put(sourceID, l)
	}
	return store.Save(outDir, sourceID)
}

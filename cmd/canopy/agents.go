package main

import (
	"context"
	"fmt"

	"canopy/internal/agent"
	"canopy/internal/pointer"
)

// builtinRegistry wires the built-in planting-pipeline agents. Their logic
// is deliberately thin placeholder computation: the engine contract (what
// each step reads and writes) is the point, real scoring lives with the
// embedding application.
func builtinRegistry() *agent.Registry {
	return agent.NewRegistry(
		siteIntakeAgent(),
		regulatoryScreenAgent(),
		equityScoreAgent(),
		speciesMatchAgent(),
		supplyCheckAgent(),
		planAssemblyAgent(),
	)
}

func siteIntakeAgent() agent.Agent {
	return agent.Func{
		Meta: agent.Info{
			ID:    "site-intake",
			Title: "Site intake",
			Phase: "site",
			RequiredPointers: []string{
				"/site/profile", "/site/soilType", "/site/areaHectares",
			},
			ProducesPointers: []string{"/site/intake"},
		},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			profile, _ := pointer.Get(inv.Context, "/site/profile")
			soil, _ := pointer.Get(inv.Context, "/site/soilType")
			return agent.Result{
				Patches: []agent.Patch{{Pointer: "/site/intake", Value: map[string]any{
					"profile":  profile,
					"soilType": soil,
					"ready":    true,
				}}},
				ReasoningSummary: "Normalized the site inputs into an intake record.",
			}, nil
		},
	}
}

func regulatoryScreenAgent() agent.Agent {
	return agent.Func{
		Meta: agent.Info{
			ID:               "regulatory-screen",
			Title:            "Regulatory screen",
			Phase:            "regulatory",
			RequiredPointers: []string{"/site/intake", "/regulatory/permitStatus"},
			ProducesPointers: []string{"/regulatory/screen"},
		},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			status, _ := pointer.Get(inv.Context, "/regulatory/permitStatus")
			cleared := status == "granted" || status == "not_required"
			return agent.Result{
				Patches: []agent.Patch{{Pointer: "/regulatory/screen", Value: map[string]any{
					"permitStatus": status,
					"cleared":      cleared,
				}}},
			}, nil
		},
	}
}

func equityScoreAgent() agent.Agent {
	return agent.Func{
		Meta: agent.Info{
			ID:               "equity-score",
			Title:            "Equity scoring",
			Phase:            "equity",
			RequiredPointers: []string{"/site/intake"},
			ProducesPointers: []string{"/equity/assessment"},
		},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			// Caller-supplied score wins; otherwise a neutral placeholder.
			score, ok := pointer.Get(inv.Context, "/equity/score")
			if !ok {
				score = 50
			}
			return agent.Result{
				Patches: []agent.Patch{{Pointer: "/equity/assessment", Value: map[string]any{
					"score": score,
				}}},
			}, nil
		},
	}
}

func speciesMatchAgent() agent.Agent {
	return agent.Func{
		Meta: agent.Info{
			ID:               "species-match",
			Title:            "Species matching",
			Phase:            "species",
			RequiredPointers: []string{"/site/intake", "/regulatory/screen"},
			ProducesPointers: []string{"/species/shortlist"},
		},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			soil, _ := pointer.Get(inv.Context, "/site/soilType")
			shortlist := []any{"acer rubrum", "quercus bicolor"}
			if soil == "sand" {
				shortlist = []any{"pinus rigida", "quercus ilicifolia"}
			}
			return agent.Result{
				Patches: []agent.Patch{{Pointer: "/species/shortlist", Value: shortlist}},
				ReasoningSummary: fmt.Sprintf("Shortlisted %d species for soil type %v.",
					len(shortlist), soil),
			}, nil
		},
	}
}

func supplyCheckAgent() agent.Agent {
	return agent.Func{
		Meta: agent.Info{
			ID:               "supply-check",
			Title:            "Supply check",
			Phase:            "supply",
			RequiredPointers: []string{"/species/shortlist", "/supply/availabilityWindow"},
			ProducesPointers: []string{"/supply/availability"},
		},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			window, _ := pointer.Get(inv.Context, "/supply/availabilityWindow")
			return agent.Result{
				Patches: []agent.Patch{{Pointer: "/supply/availability", Value: map[string]any{
					"window":    window,
					"confirmed": true,
				}}},
			}, nil
		},
	}
}

func planAssemblyAgent() agent.Agent {
	return agent.Func{
		Meta: agent.Info{
			ID:    "plan-assembly",
			Title: "Plan assembly",
			Phase: "plan",
			RequiredPointers: []string{
				"/site/intake", "/regulatory/screen", "/equity/assessment",
				"/species/shortlist", "/supply/availability",
			},
			ProducesPointers: []string{"/plan/draft"},
		},
		Fn: func(ctx context.Context, inv agent.Invocation) (agent.Result, error) {
			shortlist, _ := pointer.Get(inv.Context, "/species/shortlist")
			availability, _ := pointer.Get(inv.Context, "/supply/availability")
			equity, _ := pointer.Get(inv.Context, "/equity/assessment")
			return agent.Result{
				Patches: []agent.Patch{{Pointer: "/plan/draft", Value: map[string]any{
					"species":      shortlist,
					"availability": availability,
					"equity":       equity,
				}}},
				ReasoningSummary: "Assembled the draft planting plan from upstream results.",
			}, nil
		},
	}
}

// Package cards turns a blocked run's missing-input list into structured,
// human-actionable prompts: refine cards collecting the missing values,
// deepen cards pointing at evidence worth inspecting, and next_step cards
// routing a finished run's output onward.
package cards

import (
	"strings"
	"unicode"

	"canopy/internal/engine"
)

// InputSpec is the static description of one collectable pointer: how to
// render it, how urgent it is, and an optional safe default.
type InputSpec struct {
	Pointer    string
	Label      string
	Type       string // text, number, boolean, select
	Severity   engine.InputSeverity
	Group      string // semantic group: site, regulatory, equity, species, supply
	Priority   int    // lower sorts first within a group
	Options    []string
	HelpText   string
	ImpactNote string
	Default    any
	HasDefault bool
}

// InputRegistry resolves pointers to their static input specs. Unregistered
// pointers still resolve to a usable auto-labeled text input so the UI is
// never stuck on an unknown pointer.
type InputRegistry struct {
	specs map[string]InputSpec
}

// groupOrder fixes the semantic presentation order of input groups.
var groupOrder = map[string]int{
	"site":       0,
	"regulatory": 1,
	"equity":     2,
	"species":    3,
	"supply":     4,
}

// NewInputRegistry builds a registry from the given specs.
func NewInputRegistry(specs ...InputSpec) *InputRegistry {
	r := &InputRegistry{specs: make(map[string]InputSpec, len(specs))}
	for _, s := range specs {
		r.specs[s.Pointer] = s
	}
	return r
}

// Register adds or replaces a spec.
func (r *InputRegistry) Register(s InputSpec) {
	r.specs[s.Pointer] = s
}

// Resolve returns the spec for a pointer, synthesizing an auto-labeled text
// input for unregistered pointers. The second return reports whether the
// pointer was registered.
func (r *InputRegistry) Resolve(ptr string) (InputSpec, bool) {
	if s, ok := r.specs[ptr]; ok {
		return s, true
	}
	return InputSpec{
		Pointer:  ptr,
		Label:    autoLabel(ptr),
		Type:     "text",
		Severity: engine.SeverityRequired,
		Group:    firstSegment(ptr),
		Priority: 1000,
	}, false
}

// DefaultInputRegistry is the planting-program input catalog, ordered
// site -> regulatory -> equity -> species -> supply.
func DefaultInputRegistry() *InputRegistry {
	return NewInputRegistry(
		InputSpec{Pointer: "/site/profile", Label: "Site profile", Type: "text",
			Severity: engine.SeverityRequired, Group: "site", Priority: 0,
			HelpText: "Short description of the planting site."},
		InputSpec{Pointer: "/site/soilType", Label: "Soil type", Type: "select",
			Severity: engine.SeverityRequired, Group: "site", Priority: 1,
			Options: []string{"loam", "clay", "sand", "silt"},
			Default: "loam", HasDefault: true,
			ImpactNote: "Drives species suitability scoring."},
		InputSpec{Pointer: "/site/areaHectares", Label: "Plantable area (ha)", Type: "number",
			Severity: engine.SeverityRequired, Group: "site", Priority: 2},
		InputSpec{Pointer: "/site/canopyCover", Label: "Existing canopy cover (%)", Type: "number",
			Severity: engine.SeverityRecommended, Group: "site", Priority: 3},
		InputSpec{Pointer: "/regulatory/permitStatus", Label: "Permit status", Type: "select",
			Severity: engine.SeverityRequired, Group: "regulatory", Priority: 0,
			Options: []string{"not_required", "pending", "granted"}},
		InputSpec{Pointer: "/regulatory/protectedSpeciesCheck", Label: "Protected-species check done", Type: "boolean",
			Severity: engine.SeverityRecommended, Group: "regulatory", Priority: 1,
			ImpactNote: "Unchecked sites may need a field survey before approval."},
		InputSpec{Pointer: "/equity/score", Label: "Tree-equity score", Type: "number",
			Severity: engine.SeverityRecommended, Group: "equity", Priority: 0,
			HelpText: "0-100; lower scores are prioritized."},
		InputSpec{Pointer: "/species/shortlist", Label: "Species shortlist", Type: "text",
			Severity: engine.SeverityRequired, Group: "species", Priority: 0},
		InputSpec{Pointer: "/species/nativesOnly", Label: "Natives only", Type: "boolean",
			Severity: engine.SeverityOptional, Group: "species", Priority: 1,
			Default: true, HasDefault: true},
		InputSpec{Pointer: "/supply/availabilityWindow", Label: "Stock availability window", Type: "select",
			Severity: engine.SeverityRequired, Group: "supply", Priority: 0,
			Options: []string{"spring", "fall", "year_round"},
			Default: "spring", HasDefault: true,
			ImpactNote: "Shifts the planting schedule in the assembled plan."},
		InputSpec{Pointer: "/supply/nurseryCapacity", Label: "Nursery capacity (stems)", Type: "number",
			Severity: engine.SeverityOptional, Group: "supply", Priority: 1},
	)
}

// autoLabel derives a readable label from a pointer's last segment, e.g.
// /supply/availabilityWindow -> "Availability Window".
func autoLabel(ptr string) string {
	segs := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	last := segs[len(segs)-1]

	var b strings.Builder
	for i, r := range last {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(r)
		case r == '_' || r == '-':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstSegment(ptr string) string {
	segs := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	return segs[0]
}

// groupRank returns the sort rank of a semantic group; unknown groups sort
// after the known catalog.
func groupRank(group string) int {
	if r, ok := groupOrder[group]; ok {
		return r
	}
	return len(groupOrder)
}

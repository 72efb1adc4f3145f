package reconcile

import (
	"fmt"
	"sort"

	"hexcolony/internal/domain/territory"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Outcome names what a matched rule does to the local view.
type Outcome string

const (
	OutcomeStale    Outcome = "stale"
	OutcomeAcquired Outcome = "own-acquired"
	OutcomeLost     Outcome = "opponent-took-ours"
	OutcomeUpdated  Outcome = "frontier-updated"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
)

// RuleEnv is what a rule condition can see.
type RuleEnv struct {
	Tile       territory.TileRecord
	LocalID    string
	InOwned    bool
	InViewable bool
	// Stale is set when the known record is newer than the incoming one.
	Stale bool
}

// Rule is one row of the classification table. Higher priority is
// evaluated first and the first matching rule wins.
type Rule struct {
	Name         string
	Priority     int
	ConditionSrc string
	Outcome      Outcome
	program      *vm.Program
}

func DefaultRules() []Rule {
	return []Rule{
		{Name: "stale-record", Priority: 500, ConditionSrc: `Stale`, Outcome: OutcomeStale},
		{Name: "own-tile-acquired", Priority: 400, ConditionSrc: `Tile.ControllerUID == LocalID`, Outcome: OutcomeAcquired},
		{Name: "opponent-took-our-tile", Priority: 300, ConditionSrc: `InOwned && Tile.ControllerUID != LocalID`, Outcome: OutcomeLost},
		{Name: "known-frontier-update", Priority: 200, ConditionSrc: `InViewable`, Outcome: OutcomeUpdated},
		{Name: "irrelevant", Priority: 0, ConditionSrc: `true`, Outcome: OutcomeIgnored},
	}
}

// CompileRules compiles every condition against RuleEnv and returns the
// rules sorted by descending priority.
func CompileRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		switch r.Outcome {
		case OutcomeStale, OutcomeAcquired, OutcomeLost, OutcomeUpdated, OutcomeIgnored:
		default:
			return nil, fmt.Errorf("rule %q: unknown outcome %q", r.Name, r.Outcome)
		}
		program, err := expr.Compile(r.ConditionSrc, expr.Env(RuleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		r.program = program
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

// Package reconcile keeps a player's local picture of the map: the tiles
// their colony owns and the frontier around it. Updates are classified by
// a priority rule table and merged as keyed upserts, so replaying a record
// is harmless.
package reconcile

import (
	"fmt"
	"log/slog"
	"sort"

	"hexcolony/internal/domain/frontier"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"

	"github.com/expr-lang/expr/vm"
)

// Effects are follow-up requests the owner of the reconciler should issue.
// Their results come back through Hydrate and SetColor.
type Effects struct {
	Hydrate       []hex.TileID
	ResolveColors []string
}

func (e Effects) Empty() bool {
	return len(e.Hydrate) == 0 && len(e.ResolveColors) == 0
}

func (e *Effects) merge(o Effects) {
	e.Hydrate = appendUnique(e.Hydrate, o.Hydrate...)
	e.ResolveColors = appendUnique(e.ResolveColors, o.ResolveColors...)
}

func appendUnique[T comparable](dst []T, items ...T) []T {
	for _, it := range items {
		dup := false
		for _, have := range dst {
			if have == it {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, it)
		}
	}
	return dst
}

type Options struct {
	ViewDistance int
	// Rules replaces DefaultRules when set.
	Rules  []Rule
	Logger *slog.Logger
}

// Reconciler is not safe for concurrent use; one goroutine owns it.
type Reconciler struct {
	localID  string
	rules    []Rule
	owned    map[hex.TileID]territory.TileRecord
	viewable map[hex.TileID]territory.TileRecord
	// stranded holds lost tiles kept viewable although no owned tile covers
	// them. They go at the next ownership or view distance change.
	stranded map[hex.TileID]struct{}
	tracker  *frontier.Tracker
	colors   map[string]string
	log      *slog.Logger
}

func New(localID string, opts Options) (*Reconciler, error) {
	if localID == "" {
		return nil, fmt.Errorf("reconcile: local colony id is required")
	}
	src := opts.Rules
	if src == nil {
		src = DefaultRules()
	}
	rules, err := CompileRules(src)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		localID:  localID,
		rules:    rules,
		owned:    map[hex.TileID]territory.TileRecord{},
		viewable: map[hex.TileID]territory.TileRecord{},
		stranded: map[hex.TileID]struct{}{},
		tracker:  frontier.NewTracker(opts.ViewDistance),
		colors:   map[string]string{},
		log:      logger,
	}, nil
}

func (r *Reconciler) LocalID() string { return r.localID }

// Seed replaces the whole view with the given owned tiles and placeholder
// frontier. Every frontier id is returned for hydration.
func (r *Reconciler) Seed(owned []territory.TileRecord) Effects {
	r.owned = map[hex.TileID]territory.TileRecord{}
	r.viewable = map[hex.TileID]territory.TileRecord{}
	r.stranded = map[hex.TileID]struct{}{}
	r.tracker = frontier.NewTracker(r.tracker.Distance())
	for _, tile := range owned {
		if err := validate(tile); err != nil {
			r.log.Warn("seed tile dropped", "tile", tile.ID, "err", err)
			continue
		}
		r.owned[tile.ID] = tile.Clone()
		r.tracker.Add(tile.Coordinate())
	}
	var fx Effects
	front := r.tracker.Frontier()
	for _, id := range front.SortedIDs() {
		r.viewable[id] = territory.Placeholder(front[id])
		fx.Hydrate = append(fx.Hydrate, id)
	}
	return fx
}

// Apply classifies one record and merges it. It never panics; malformed
// records are logged and rejected.
func (r *Reconciler) Apply(tile territory.TileRecord) (outcome Outcome, fx Effects) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("reconcile panic", "tile", tile.ID, "panic", p)
			outcome, fx = OutcomeRejected, Effects{}
		}
	}()

	if err := validate(tile); err != nil {
		r.log.Warn("tile update dropped", "tile", tile.ID, "err", err)
		return OutcomeRejected, Effects{}
	}

	env := r.env(tile)
	rule, ok := r.match(env)
	if !ok {
		return OutcomeIgnored, Effects{}
	}

	switch rule.Outcome {
	case OutcomeAcquired:
		fx = r.acquire(tile)
	case OutcomeLost:
		fx = r.lose(tile)
	case OutcomeUpdated:
		r.viewable[tile.ID] = r.colored(tile)
	}
	return rule.Outcome, fx
}

// ApplyBatch applies records in order and merges their effects.
func (r *Reconciler) ApplyBatch(tiles []territory.TileRecord) Effects {
	var fx Effects
	for _, tile := range tiles {
		_, e := r.Apply(tile)
		fx.merge(e)
	}
	return fx
}

// Hydrate merges fetched frontier records. They go through the same rules
// as live updates, so a late fetch cannot overwrite a newer record.
func (r *Reconciler) Hydrate(tiles []territory.TileRecord) Effects {
	return r.ApplyBatch(tiles)
}

func (r *Reconciler) SetViewDistance(k int) Effects {
	return r.syncFrontier(r.tracker.SetDistance(k))
}

// SetColor records a controller's display color and repaints the frontier
// tiles they hold.
func (r *Reconciler) SetColor(controllerUID, color string) {
	if controllerUID == "" || color == "" {
		return
	}
	r.colors[controllerUID] = color
	for id, tile := range r.viewable {
		if tile.ControllerUID == controllerUID && tile.Color != color {
			tile.Color = color
			r.viewable[id] = tile
		}
	}
}

type Snapshot struct {
	LocalID      string
	ViewDistance int
	Owned        map[hex.TileID]territory.TileRecord
	Viewable     map[hex.TileID]territory.TileRecord
}

func (s Snapshot) OwnedIDs() []hex.TileID { return sortedIDs(s.Owned) }
func (s Snapshot) ViewableIDs() []hex.TileID { return sortedIDs(s.Viewable) }

func (r *Reconciler) Snapshot() Snapshot {
	s := Snapshot{
		LocalID:      r.localID,
		ViewDistance: r.tracker.Distance(),
		Owned:        make(map[hex.TileID]territory.TileRecord, len(r.owned)),
		Viewable:     make(map[hex.TileID]territory.TileRecord, len(r.viewable)),
	}
	for id, t := range r.owned {
		s.Owned[id] = t.Clone()
	}
	for id, t := range r.viewable {
		s.Viewable[id] = t.Clone()
	}
	return s
}

func (r *Reconciler) env(tile territory.TileRecord) RuleEnv {
	known, inOwned := r.owned[tile.ID]
	if !inOwned {
		known = r.viewable[tile.ID]
	}
	_, inViewable := r.viewable[tile.ID]
	return RuleEnv{
		Tile:       tile,
		LocalID:    r.localID,
		InOwned:    inOwned,
		InViewable: inViewable,
		Stale:      (inOwned || inViewable) && known.UpdatedAt.After(tile.UpdatedAt),
	}
}

func (r *Reconciler) match(env RuleEnv) (Rule, bool) {
	for _, rule := range r.rules {
		result, err := vm.Run(rule.program, env)
		if err != nil {
			r.log.Warn("rule condition error", "rule", rule.Name, "err", err)
			continue
		}
		if ok, _ := result.(bool); ok {
			r.log.Debug("rule matched", "rule", rule.Name, "tile", env.Tile.ID)
			return rule, true
		}
	}
	return Rule{}, false
}

func (r *Reconciler) acquire(tile territory.TileRecord) Effects {
	r.owned[tile.ID] = tile.Clone()
	delete(r.viewable, tile.ID)
	return r.syncFrontier(r.tracker.Add(tile.Coordinate()))
}

// lose moves the tile to the frontier set before the tracker shrinks so the
// real record is never replaced by a placeholder.
func (r *Reconciler) lose(tile territory.TileRecord) Effects {
	delete(r.owned, tile.ID)
	r.viewable[tile.ID] = r.colored(tile)
	fx := r.syncFrontier(r.tracker.Remove(tile.Coordinate()))
	if !r.tracker.Contains(tile.ID) {
		r.stranded[tile.ID] = struct{}{}
	}
	if uid := tile.ControllerUID; uid != "" {
		if _, known := r.colors[uid]; !known {
			fx.ResolveColors = append(fx.ResolveColors, uid)
		}
	}
	return fx
}

// syncFrontier drops tiles that left the frontier and adds placeholders for
// those that entered it.
func (r *Reconciler) syncFrontier(d frontier.Delta) Effects {
	var fx Effects
	for id := range r.stranded {
		if !r.tracker.Contains(id) && !r.tracker.Owned(id) {
			delete(r.viewable, id)
		}
		delete(r.stranded, id)
	}
	for _, id := range d.Left {
		delete(r.viewable, id)
	}
	for _, c := range d.Entered {
		id := hex.Encode(c)
		if _, ok := r.owned[id]; ok {
			continue
		}
		if _, ok := r.viewable[id]; ok {
			continue
		}
		r.viewable[id] = territory.Placeholder(c)
		fx.Hydrate = append(fx.Hydrate, id)
	}
	return fx
}

func (r *Reconciler) colored(tile territory.TileRecord) territory.TileRecord {
	out := tile.Clone()
	if out.Color == "" && out.ControllerUID != "" {
		out.Color = r.colors[out.ControllerUID]
	}
	return out
}

func validate(tile territory.TileRecord) error {
	c, err := hex.Decode(tile.ID)
	if err != nil {
		return err
	}
	if c != tile.Coordinate() {
		return fmt.Errorf("tile %s carries coordinate %d,%d,%d", tile.ID, tile.Q, tile.R, tile.S)
	}
	return nil
}

func sortedIDs(m map[hex.TileID]territory.TileRecord) []hex.TileID {
	out := make([]hex.TileID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Package terrain classifies hex coordinates into tile types using seeded
// coherent noise. Classification is a pure function of (seed, q, r) so any
// client or server can regenerate a tile without shared state.
package terrain

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"

	opensimplex "github.com/ojrac/opensimplex-go"
	"lukechampine.com/blake3"

	"hexcolony/internal/domain/hex"
)

type TileType string

const (
	StarRich TileType = "STAR_RICH"
	Normal   TileType = "NORMAL"
	DeadZone TileType = "DEAD_ZONE"
	Barrier  TileType = "BARRIER"
)

func (t TileType) Valid() bool {
	switch t {
	case StarRich, Normal, DeadZone, Barrier:
		return true
	}
	return false
}

// barrierDensityCap bounds barrier density regardless of the affine map.
const barrierDensityCap = 0.1

var ErrInvalidConfig = errors.New("invalid terrain config")

type Config struct {
	Scale             float64 `yaml:"scale"`
	StarRichThreshold float64 `yaml:"star_rich_threshold"`
	DeadZoneThreshold float64 `yaml:"dead_zone_threshold"`
	BarrierBand       float64 `yaml:"barrier_band"`
}

func DefaultConfig() Config {
	return Config{
		Scale:             0.08,
		StarRichThreshold: 0.45,
		DeadZoneThreshold: -0.45,
		BarrierBand:       0.04,
	}
}

func (c Config) Validate() error {
	if c.Scale <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("scale must be positive"))
	}
	if c.BarrierBand < 0 || c.BarrierBand >= c.StarRichThreshold || -c.BarrierBand <= c.DeadZoneThreshold {
		return errors.Join(ErrInvalidConfig, errors.New("thresholds must satisfy dead_zone < -band <= band < star_rich"))
	}
	return nil
}

// Sample is one classified tile.
type Sample struct {
	Type      TileType
	Density   float64
	Resources map[string]float64
}

type Generator struct {
	seed  int64
	cfg   Config
	noise opensimplex.Noise
}

func NewGenerator(seed int64, cfg Config) *Generator {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Generator{seed: seed, cfg: cfg, noise: opensimplex.New(seed)}
}

func (g *Generator) Seed() int64 { return g.seed }

// Noise returns the raw noise value in [-1, 1] at a coordinate.
func (g *Generator) Noise(q, r int) float64 {
	n := g.noise.Eval2(float64(q)*g.cfg.Scale, float64(r)*g.cfg.Scale)
	return clamp(n, -1, 1)
}

func (g *Generator) Classify(q, r int) (TileType, float64) {
	n := g.Noise(q, r)
	t := g.typeFor(n)
	return t, density(t, n)
}

func (g *Generator) Sample(c hex.Coordinate) Sample {
	t, d := g.Classify(c.Q, c.R)
	return Sample{Type: t, Density: d, Resources: Resources(t, d)}
}

// StartSample is Sample with the type forced to Normal, so a new colony never
// spawns on a barrier.
func (g *Generator) StartSample(c hex.Coordinate) Sample {
	d := density(Normal, g.Noise(c.Q, c.R))
	return Sample{Type: Normal, Density: d, Resources: Resources(Normal, d)}
}

func (g *Generator) typeFor(n float64) TileType {
	switch {
	case n > g.cfg.StarRichThreshold:
		return StarRich
	case n < g.cfg.DeadZoneThreshold:
		return DeadZone
	case math.Abs(n) < g.cfg.BarrierBand:
		return Barrier
	default:
		return Normal
	}
}

func density(t TileType, n float64) float64 {
	var d float64
	switch t {
	case StarRich:
		d = 0.55 + 0.45*n
	case DeadZone:
		d = 0.12 + 0.1*n
	case Barrier:
		d = math.Min(0.05+0.25*n, barrierDensityCap)
	default:
		d = 0.35 + 0.4*n
	}
	return round2(clamp(d, 0, 1))
}

// Resources derives the per-resource yields for a tile.
func Resources(t TileType, d float64) map[string]float64 {
	switch t {
	case StarRich:
		return map[string]float64{"stardust": round2(d * 100), "energy": round2(d * 40)}
	case Normal:
		return map[string]float64{"ore": round2(d * 60), "energy": round2(d * 20)}
	case DeadZone:
		return map[string]float64{"salvage": round2(d * 10)}
	default:
		return map[string]float64{}
	}
}

// maxSharedGens bounds the per-seed cache behind Classify. A process
// normally serves one world seed.
const maxSharedGens = 8

var (
	sharedMu   sync.Mutex
	sharedGens = map[int64]*Generator{}
)

// Classify uses the default thresholds. Generators are cached per seed; when
// the cache is full an arbitrary entry is evicted.
func Classify(seed int64, q, r int) (TileType, float64) {
	sharedMu.Lock()
	g, ok := sharedGens[seed]
	if !ok {
		if len(sharedGens) >= maxSharedGens {
			for k := range sharedGens {
				delete(sharedGens, k)
				break
			}
		}
		g = NewGenerator(seed, DefaultConfig())
		sharedGens[seed] = g
	}
	sharedMu.Unlock()
	return g.Classify(q, r)
}

// SeedFromPhrase derives a world seed from a human-readable phrase.
func SeedFromPhrase(phrase string) int64 {
	sum := blake3.Sum256([]byte(phrase))
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package kernel implements the probability fusion math: softmax scoring,
// log-opinion pooling across sources, market-implied probabilities, top-N
// agreement counting, and consensus-level classification. Every function
// here is pure — no I/O, no wall-clock reads — except LoadConstants, which
// reads an optional override file.
package kernel

import (
	"fmt"
	"os"

	"github.com/foie0222/baken-autobet/internal/domain"
	"gopkg.in/yaml.v3"
)

// defaultBetas holds the per-source softmax temperature β.
var defaultBetas = map[domain.SourceName]float64{
	domain.SourceUmamax:        0.052082,
	domain.SourceMuryouKeibaAI: 0.072791,
	domain.SourceKeibaAIAthena: 0.006745,
	domain.SourceKeibaAINavi:   0.070031,
}

// defaultWinWeights and defaultPlaceWeights are the backtest-fixed source
// weights, in domain.AllSources order, used before per-run renormalization
// against the subset of sources actually present.
var defaultWinWeights = []float64{0.401, 0.035, 0.251, 0.313}
var defaultPlaceWeights = []float64{0.314, 0.214, 0.309, 0.164}

// Constants holds the tunable fusion parameters. The zero value is never
// used directly — call LoadConstants to get the backtest defaults, with an
// optional YAML override file layered on top.
type Constants struct {
	Betas       map[domain.SourceName]float64
	WinWeights  []float64
	PlaceWeights []float64
}

// yamlOverride is the shape of an optional override file. Any field left
// absent keeps the backtest default.
type yamlOverride struct {
	Betas        map[string]float64 `yaml:"betas"`
	WinWeights   []float64          `yaml:"win_weights"`
	PlaceWeights []float64          `yaml:"place_weights"`
}

// DefaultConstants returns the backtest-fixed constants exactly as given in
// the specification, with no override applied.
func DefaultConstants() Constants {
	betas := make(map[domain.SourceName]float64, len(defaultBetas))
	for k, v := range defaultBetas {
		betas[k] = v
	}
	return Constants{
		Betas:        betas,
		WinWeights:   append([]float64(nil), defaultWinWeights...),
		PlaceWeights: append([]float64(nil), defaultPlaceWeights...),
	}
}

// LoadConstants returns the backtest defaults, optionally overridden by a
// YAML file at path. An empty path or a missing file is not an error — it
// simply means "use the defaults". This exists for re-tuning the kernel
// without a rebuild; the defaults remain bit-exact with the specification
// when no override file is present.
func LoadConstants(path string) (Constants, error) {
	c := DefaultConstants()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return Constants{}, fmt.Errorf("kernel.LoadConstants: read %q: %w", path, err)
	}
	var override yamlOverride
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Constants{}, fmt.Errorf("kernel.LoadConstants: parse %q: %w", path, err)
	}
	for name, beta := range override.Betas {
		c.Betas[domain.SourceName(name)] = beta
	}
	if len(override.WinWeights) > 0 {
		c.WinWeights = override.WinWeights
	}
	if len(override.PlaceWeights) > 0 {
		c.PlaceWeights = override.PlaceWeights
	}
	return c, nil
}

// WeightsFor returns a map from source name to weight (win or place) for
// exactly the sources present, renormalized to sum to 1. At least two
// sources are required by the caller before this is invoked.
func WeightsFor(allWeights []float64, present []domain.SourceName) map[domain.SourceName]float64 {
	sum := 0.0
	raw := make(map[domain.SourceName]float64, len(present))
	for _, s := range present {
		idx := sourceIndex(s)
		if idx < 0 {
			continue
		}
		raw[s] = allWeights[idx]
		sum += allWeights[idx]
	}
	out := make(map[domain.SourceName]float64, len(raw))
	if sum == 0 {
		return out
	}
	for s, w := range raw {
		out[s] = w / sum
	}
	return out
}

func sourceIndex(s domain.SourceName) int {
	for i, name := range domain.AllSources {
		if name == s {
			return i
		}
	}
	return -1
}

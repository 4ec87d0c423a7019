package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig holds the replay settings.
type FixtureConfig struct {
	Fallback string `json:"fallback"`
}

// FixtureInteraction is one recorded reply and the positions bracketing the
// inputs it produced.
type FixtureInteraction struct {
	TurnID         string                `json:"turn_id"`
	ResponseText   string                `json:"response_text"`
	PositionBefore *groundtruth.Position `json:"position_before"`
	PositionAfter  *groundtruth.Position `json:"position_after"`
}

// FixtureExpectedResult captures what each turn must produce.
type FixtureExpectedResult struct {
	TurnID       string   `json:"turn_id"`
	Result       string   `json:"result"`
	Inputs       []string `json:"inputs"`
	Fallback     bool     `json:"fallback"`
	Guarded      int      `json:"guarded"`
	Contradicted int      `json:"contradicted"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToInteraction converts a FixtureInteraction to a domain Interaction.
func (fi *FixtureInteraction) ToInteraction() Interaction {
	return Interaction{
		TurnID:         fi.TurnID,
		ResponseText:   fi.ResponseText,
		PositionBefore: fi.PositionBefore,
		PositionAfter:  fi.PositionAfter,
	}
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() (ReplayConfig, error) {
	cfg := DefaultReplayConfig()
	if fc.Fallback != "" {
		b, ok := directive.ParseButton(fc.Fallback)
		if !ok {
			return cfg, fmt.Errorf("fixture fallback %q is not a button", fc.Fallback)
		}
		cfg.Fallback = b
	}
	return cfg, nil
}

// ToInteractions converts every fixture interaction.
func (f *Fixture) ToInteractions() []Interaction {
	out := make([]Interaction, len(f.Interactions))
	for i := range f.Interactions {
		out[i] = f.Interactions[i].ToInteraction()
	}
	return out
}

// #endregion fixture-loader

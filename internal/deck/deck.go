// Package deck loads the prompt and response card sets. Cards ship embedded
// as YAML; each card carries a mature text and, optionally, a
// family-friendly variant used when a session disables mature content.
package deck

import (
	_ "embed"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ndbelyaev/whitecards/internal/game"
)

//go:embed cards.yaml
var embeddedCards []byte

// Variant is one card's texts. Family may be empty, in which case the mature
// text is used for every session.
type Variant struct {
	Mature string `yaml:"mature"`
	Family string `yaml:"family,omitempty"`
}

// Deck is a full card set: shared prompt cards and per-hand response cards.
type Deck struct {
	Prompts   []Variant `yaml:"prompts"`
	Responses []Variant `yaml:"responses"`
}

// Default returns the embedded card set.
func Default() (*Deck, error) {
	return Parse(embeddedCards)
}

// Parse reads a deck from YAML and checks it is usable.
func Parse(data []byte) (*Deck, error) {
	var d Deck
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse deck: %w", err)
	}
	if len(d.Prompts) == 0 {
		return nil, fmt.Errorf("deck has no prompt cards")
	}
	if len(d.Responses) == 0 {
		return nil, fmt.Errorf("deck has no response cards")
	}
	for i, v := range d.Prompts {
		if v.Mature == "" {
			return nil, fmt.Errorf("prompt card %d has no mature text", i)
		}
	}
	for i, v := range d.Responses {
		if v.Mature == "" {
			return nil, fmt.Errorf("response card %d has no mature text", i)
		}
	}
	return &d, nil
}

// Build produces fresh prompt and response pools for one game. Card ids are
// the deck index rendered as a string: stable within a single deal, rebuilt
// on every game start. When mature is false the family variant is used where
// present, falling back to the mature text where it is not.
func (d *Deck) Build(mature bool) (prompts, responses []game.Card) {
	return buildPool(d.Prompts, mature), buildPool(d.Responses, mature)
}

func buildPool(variants []Variant, mature bool) []game.Card {
	cards := make([]game.Card, len(variants))
	for i, v := range variants {
		text := v.Mature
		if !mature && v.Family != "" {
			text = v.Family
		}
		cards[i] = game.Card{ID: strconv.Itoa(i), Text: text}
	}
	return cards
}

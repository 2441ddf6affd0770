package types

import "strconv"

// MaxVoteLength is the maximum accepted length of a single card token on the wire.
const MaxVoteLength = 10

// A Deck is the closed set of card values a room accepts. The order of Values
// is the canonical display order and is used to break ties when vote counts
// are sorted.
type Deck struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// DefaultDeck is used for rooms that do not request a specific deck.
var DefaultDeck = Deck{
	Name:   "fibonacci",
	Values: []string{"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", "?", "∞", "☕"},
}

// Contains reports whether value is a card of this deck.
func (d Deck) Contains(value string) bool {
	for _, v := range d.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Rank returns the position of value in the canonical deck order, or
// len(Values) for values not in the deck.
func (d Deck) Rank(value string) int {
	for i, v := range d.Values {
		if v == value {
			return i
		}
	}
	return len(d.Values)
}

// NumericValue parses a card as a number. Symbolic cards ("?", "∞", "☕")
// are excluded from averages; they report ok=false.
func NumericValue(value string) (float64, bool) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

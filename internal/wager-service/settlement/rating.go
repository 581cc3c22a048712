package settlement

import (
	"fmt"
	"math"
)

// RatingStrategy calcula os novos ratings depois de uma partida
type RatingStrategy interface {
	Adjust(winner, loser int) (int, int)
	Name() string
}

// FixedDelta soma Delta ao vencedor e subtrai do perdedor
type FixedDelta struct{ Delta int }

func (f FixedDelta) Adjust(winner, loser int) (int, int) { return winner + f.Delta, loser - f.Delta }
func (f FixedDelta) Name() string                        { return "fixed" }

// Elo usa a expectativa logística clássica com fator K
type Elo struct{ K int }

func (e Elo) Adjust(winner, loser int) (int, int) {
	expected := 1 / (1 + math.Pow(10, float64(loser-winner)/400))
	delta := int(math.Round(float64(e.K) * (1 - expected)))
	return winner + delta, loser - delta
}

func (e Elo) Name() string { return "elo" }

// NewRatingStrategy escolhe a estratégia pelo nome de configuração
func NewRatingStrategy(name string, delta, k int) (RatingStrategy, error) {
	switch name {
	case "", "fixed":
		return FixedDelta{Delta: delta}, nil
	case "elo":
		return Elo{K: k}, nil
	default:
		return nil, fmt.Errorf("unknown rating strategy %q", name)
	}
}

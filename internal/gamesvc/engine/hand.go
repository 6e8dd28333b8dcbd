package engine

// HandValue scores a blackjack hand. Aces count 11 and are softened to 1,
// one at a time, while the total is over 21.
func HandValue(hand []Card) int {
	total, softAces := 0, 0
	for _, c := range hand {
		if c.Hidden {
			continue
		}
		total += c.Value()
		if c.Rank == "A" {
			softAces++
		}
	}
	for total > 21 && softAces > 0 {
		total -= 10
		softAces--
	}
	return total
}

func isNatural(hand []Card) bool {
	return len(hand) == 2 && HandValue(hand) == 21
}

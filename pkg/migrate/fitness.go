package migrate

import "github.com/seal-hub/CraftDroid/pkg/core"

// Fitness scores a target sequence: the mean score of its gui events and
// the mean score of its oracle events, weighted equally. Empty events
// count as 0 in the category they stand in for; a category without events
// contributes 0.
func Fitness(events []core.Event) float64 {
	var gui, oracle []float64
	for _, e := range events {
		score := e.Score
		if e.IsEmpty() {
			score = 0
		}
		switch e.Category() {
		case core.KindGUI:
			gui = append(gui, score)
		case core.KindOracle:
			oracle = append(oracle, score)
		case core.KindStepping, core.KindSys, core.KindEmpty, core.KindUnknown:
		}
	}
	return 0.5*mean(gui) + 0.5*mean(oracle)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

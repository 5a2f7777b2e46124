package services

import "github.com/arnold/goalmentor-api/internal/models"

// ComputeProgress rounds 100*done/total half-up using integer math.
// A goal with no tasks is at 0.
func ComputeProgress(done, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*done + total) / (2 * total)
}

func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func progressOf(tasks []models.Task) int {
	done := 0
	for _, t := range tasks {
		if t.Done {
			done++
		}
	}
	return ComputeProgress(done, len(tasks))
}

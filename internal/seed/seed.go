// Package seed resets the persisted score to its initial shape.
package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fivemin/harmony/internal/adapters/mq/writeback"
	"github.com/fivemin/harmony/internal/domain/notes"
)

// Fill replaces every measure with notesPerMeasure uninitialized rests.
// Existing notes in those measures are dropped.
func Fill(ctx context.Context, sink writeback.Sink, totalMeasures, notesPerMeasure int) error {
	if totalMeasures < 1 || notesPerMeasure < 1 {
		return fmt.Errorf("seed: measures and notes per measure must be positive")
	}
	for m := 0; m < totalMeasures; m++ {
		ns := make([]notes.Note, notesPerMeasure)
		for p := range ns {
			ns[p] = notes.Note{
				ID:       uuid.NewString(),
				Measure:  m,
				Pitch:    notes.PitchRest,
				Duration: notes.DefaultRestDuration,
				Position: p,
			}
		}
		if err := sink.ReplaceMeasure(ctx, m, ns); err != nil {
			return fmt.Errorf("seed measure %d: %w", m, err)
		}
	}
	return nil
}

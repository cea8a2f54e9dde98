package chat

import (
	"context"
	"iter"
	"strings"
	"time"
)

// DefaultStreamDelay is the pause between chunks used by the UIs.
const DefaultStreamDelay = 30 * time.Millisecond

// Stream replays an already generated response as word chunks. The text is
// split on single spaces only, so newlines stay inside their token, and every
// chunk carries one trailing space. Joining the chunks therefore yields
// fullText plus one extra trailing space.
//
// Each call returns an independent sequence.
func Stream(fullText string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if fullText == "" {
			return
		}
		for _, token := range strings.Split(fullText, " ") {
			if !yield(token + " ") {
				return
			}
		}
	}
}

// Pace drains seq into emit, sleeping delay between chunks. It stops early when
// ctx is done or emit fails.
func Pace(ctx context.Context, seq iter.Seq[string], delay time.Duration, emit func(chunk string) error) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	first := true
	for chunk := range seq {
		if !first && delay > 0 {
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		first = false

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

package services

import (
	"context"
	"fmt"

	"github.com/quizforge/assessment-engine/internal/repositories"
)

const maxConflictRetries = 3

// withConflictRetry re-runs fn when the versioned quiz write lost a
// race. Each retry re-reads the aggregate, so fn must be a full
// read-modify-write cycle. After maxConflictRetries losses the caller
// sees ErrConcurrencyConflict.
func withConflictRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if err == nil || !repositories.IsVersionConflict(err) {
			return err
		}
	}
	return ErrConcurrencyConflict
}

func analyticsCacheKey(quizID uint) string {
	return fmt.Sprintf("quiz:analytics:%d", quizID)
}

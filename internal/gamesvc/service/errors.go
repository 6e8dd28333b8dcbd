package service

import (
	"errors"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
)

// classify maps whatever came out of a unit of work onto the apperr taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrStale):
		return apperr.StaleConflict("table changed concurrently, retry")
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict("record already exists")
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("record not found")
	}
	return apperr.Transient(err)
}

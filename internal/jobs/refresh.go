package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/jtcarver/portfolio-ledger/internal/ledger"
)

// PriceRefresher periodically refreshes position prices through the
// ledger's bulk refresh.
type PriceRefresher struct {
	cron   *cron.Cron
	ledger *ledger.Ledger
	log    zerolog.Logger
}

// NewPriceRefresher creates an unstarted refresher
func NewPriceRefresher(l *ledger.Ledger, log zerolog.Logger) *PriceRefresher {
	return &PriceRefresher{
		cron:   cron.New(),
		ledger: l,
		log:    log.With().Str("component", "price_refresher").Logger(),
	}
}

// Start registers the refresh job on the given cron schedule and starts
// the scheduler
func (r *PriceRefresher) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info().Str("schedule", schedule).Msg("Price refresh scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (r *PriceRefresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info().Msg("Price refresher stopped")
}

func (r *PriceRefresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := r.ledger.RefreshPrices(ctx)

	var partial *ledger.PartialQuoteError
	switch {
	case err == nil:
		r.log.Debug().Int("updated", result.Updated).Msg("Refresh complete")
	case errors.As(err, &partial):
		r.log.Warn().
			Int("requested", partial.Requested).
			Int("updated", partial.Updated).
			Msg("Refresh returned a partial result")
	default:
		r.log.Error().Err(err).Msg("Refresh failed")
	}
}

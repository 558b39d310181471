package storage

import (
	"github.com/jtcarver/portfolio-ledger/internal/models"
)

// Store persists the single default portfolio. Load returns an empty
// portfolio when nothing has been saved yet. Implementations must make
// Save atomic: a failed save leaves the previously persisted state intact.
type Store interface {
	Load() (*models.Portfolio, error)
	Save(p *models.Portfolio) error
}

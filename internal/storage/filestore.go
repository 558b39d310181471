package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jtcarver/portfolio-ledger/internal/models"
)

// FileStore persists the portfolio as a JSON document keyed by portfolio
// id, matching the historically persisted shape: decimals as strings, the
// long/short ratio as a numeric string or "N/A".
type FileStore struct {
	path string
}

// NewFileStore creates a store writing to path. Parent directories are
// created on the first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted document and returns the default portfolio.
// A missing file yields a fresh empty portfolio.
func (s *FileStore) Load() (*models.Portfolio, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewPortfolio(models.DefaultPortfolioID), nil
		}
		return nil, fmt.Errorf("failed to read portfolio file: %w", err)
	}

	var doc map[string]*models.Portfolio
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio file: %w", err)
	}

	p, ok := doc[models.DefaultPortfolioID]
	if !ok || p == nil {
		return models.NewPortfolio(models.DefaultPortfolioID), nil
	}
	if p.ID == "" {
		p.ID = models.DefaultPortfolioID
	}
	return p, nil
}

// Save writes the portfolio through a temp file and an atomic rename so a
// crash mid-write never truncates the previous document.
func (s *FileStore) Save(p *models.Portfolio) error {
	doc := map[string]*models.Portfolio{p.ID: p}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".portfolio-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write portfolio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace portfolio file: %w", err)
	}
	return nil
}

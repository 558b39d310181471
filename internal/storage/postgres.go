package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/jtcarver/portfolio-ledger/internal/models"
)

// PostgresStore persists the portfolio in PostgreSQL. Positions and the
// transaction log are the source of truth; metadata is recomputed on load
// rather than stored.
type PostgresStore struct {
	conn        *sql.DB
	portfolioID string
}

// NewPostgresStore connects to PostgreSQL and verifies the connection
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{conn: conn, portfolioID: models.DefaultPortfolioID}, nil
}

// Migrate applies all pending schema migrations from migrationsPath
func (s *PostgresStore) Migrate(migrationsPath string) error {
	driver, err := postgres.WithInstance(s.conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.conn.Close()
}

// Load reads positions and transactions and recomputes metadata
func (s *PostgresStore) Load() (*models.Portfolio, error) {
	p := &models.Portfolio{ID: s.portfolioID}

	posQuery := `
		SELECT symbol, position_type, quantity, cost_basis, current_price,
		       sector, industry, beta, entry_date, last_updated
		FROM positions
		WHERE portfolio_id = $1
		ORDER BY symbol, position_type
	`
	rows, err := s.conn.Query(posQuery, s.portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos models.Position
		err := rows.Scan(
			&pos.Symbol, &pos.PositionType, &pos.Quantity, &pos.CostBasis, &pos.CurrentPrice,
			&pos.Sector, &pos.Industry, &pos.Beta, &pos.EntryDate, &pos.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Positions = append(p.Positions, &pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	txQuery := `
		SELECT id, symbol, transaction_type, quantity, price, date, realized_gain
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY id
	`
	txRows, err := s.conn.Query(txQuery, s.portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer txRows.Close()

	for txRows.Next() {
		var t models.Transaction
		var realizedGain sql.NullString
		err := txRows.Scan(
			&t.ID, &t.Symbol, &t.TransactionType, &t.Quantity, &t.Price, &t.Date, &realizedGain,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if realizedGain.Valid {
			gain, err := decimal.NewFromString(realizedGain.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse realized gain %q: %w", realizedGain.String, err)
			}
			t.RealizedGain = decimal.NullDecimal{Decimal: gain, Valid: true}
		}
		p.Transactions = append(p.Transactions, &t)
	}
	if err := txRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	p.UpdateMetadata()
	return p, nil
}

// Save replaces the persisted positions and transaction log in a single
// database transaction
func (s *PostgresStore) Save(p *models.Portfolio) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM positions WHERE portfolio_id = $1`, s.portfolioID); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM transactions WHERE portfolio_id = $1`, s.portfolioID); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}

	posStmt, err := tx.Prepare(`
		INSERT INTO positions (
			portfolio_id, symbol, position_type, quantity, cost_basis, current_price,
			sector, industry, beta, entry_date, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare position insert: %w", err)
	}
	defer posStmt.Close()

	for _, pos := range p.Positions {
		_, err := posStmt.Exec(
			s.portfolioID, pos.Symbol, pos.PositionType, pos.Quantity, pos.CostBasis, pos.CurrentPrice,
			pos.Sector, pos.Industry, pos.Beta, pos.EntryDate, pos.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("failed to insert position %s/%s: %w", pos.Symbol, pos.PositionType, err)
		}
	}

	txStmt, err := tx.Prepare(`
		INSERT INTO transactions (
			portfolio_id, id, symbol, transaction_type, quantity, price, date, realized_gain
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare transaction insert: %w", err)
	}
	defer txStmt.Close()

	for _, t := range p.Transactions {
		var realizedGain interface{}
		if t.RealizedGain.Valid {
			realizedGain = t.RealizedGain.Decimal.String()
		}
		_, err := txStmt.Exec(
			s.portfolioID, t.ID, t.Symbol, t.TransactionType, t.Quantity, t.Price, t.Date, realizedGain,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}
	return nil
}

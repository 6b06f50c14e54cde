package datasource

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"
)

// LegacyLead is one prospect row from the legacy CRM database.
type LegacyLead struct {
	Name    string
	Email   string
	Phone   string
	Company string
}

// Client reads prospect rows from the legacy CRM's SQL Server
// database. Read-only; the legacy system remains the owner of its
// data.
type Client struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewClient(connectionString string, logger *zap.Logger) (*Client, error) {
	db, err := sql.Open("sqlserver", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening legacy CRM connection: %w", err)
	}
	return &Client{db: db, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// FetchLeads returns up to limit prospect rows, newest first.
func (c *Client) FetchLeads(ctx context.Context, limit int) ([]LegacyLead, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT TOP (@limit)
			COALESCE(full_name, '')     AS full_name,
			COALESCE(email_address, '') AS email_address,
			COALESCE(phone_number, '')  AS phone_number,
			COALESCE(company_name, '')  AS company_name
		FROM dbo.prospects
		ORDER BY created_at DESC`

	rows, err := c.db.QueryContext(ctx, query, sql.Named("limit", limit))
	if err != nil {
		return nil, fmt.Errorf("querying legacy prospects: %w", err)
	}
	defer rows.Close()

	var leads []LegacyLead
	for rows.Next() {
		var lead LegacyLead
		if err := rows.Scan(&lead.Name, &lead.Email, &lead.Phone, &lead.Company); err != nil {
			return nil, fmt.Errorf("scanning legacy prospect: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating legacy prospects: %w", err)
	}

	c.logger.Info("fetched legacy prospects", zap.Int("count", len(leads)))
	return leads, nil
}

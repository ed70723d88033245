package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Capabilities records optional schema features found at startup. It is
// computed once and passed by value to the repositories that need it.
type Capabilities struct {
	StudentSoftDelete  bool
	DocumentSoftDelete bool
}

const capabilitiesQuery = `
	SELECT table_name
	FROM information_schema.columns
	WHERE table_schema = current_schema()
	  AND column_name = 'deleted_at'
	  AND table_name IN ('students', 'documents')
`

// DetectCapabilities probes information_schema for the soft-delete columns.
func DetectCapabilities(ctx context.Context, db *sql.DB) (Capabilities, error) {
	rows, err := db.QueryContext(ctx, capabilitiesQuery)
	if err != nil {
		return Capabilities{}, fmt.Errorf("probe schema: %w", err)
	}
	defer rows.Close()

	var caps Capabilities
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return Capabilities{}, fmt.Errorf("probe schema: %w", err)
		}
		switch table {
		case "students":
			caps.StudentSoftDelete = true
		case "documents":
			caps.DocumentSoftDelete = true
		}
	}
	if err := rows.Err(); err != nil {
		return Capabilities{}, fmt.Errorf("probe schema: %w", err)
	}
	return caps, nil
}

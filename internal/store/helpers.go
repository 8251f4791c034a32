package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// encodeProviderErrors serializes provider errors for a nullable text column.
func encodeProviderErrors(errs []string) (interface{}, error) {
	if len(errs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider errors: %w", err)
	}
	return string(b), nil
}

// scanExchanges reads exchange rows in the column order used by the list queries:
// id, message, emotion, zone, strategy, source, provider_errors, created_at.
func scanExchanges(rows *sql.Rows) ([]Exchange, error) {
	var out []Exchange
	for rows.Next() {
		var e Exchange
		var providerErrors sql.NullString
		if err := rows.Scan(&e.ID, &e.Message, &e.Emotion, &e.Zone, &e.Strategy, &e.Source, &providerErrors, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange failed: %w", err)
		}
		if providerErrors.Valid && providerErrors.String != "" {
			if err := json.Unmarshal([]byte(providerErrors.String), &e.ProviderErrors); err != nil {
				slog.Warn("store.scanExchanges: malformed provider_errors column, ignoring", "id", e.ID, "error", err)
				e.ProviderErrors = nil
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exchange rows: %w", err)
	}
	return out, nil
}

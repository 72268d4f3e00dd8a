package storage

import (
	"database/sql"
	"fmt"
)

// UsageRepository provides access to the usages table.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Insert creates a new usage row and fills in its id.
func (r *UsageRepository) Insert(usage *UsageRecord) error {
	result, err := r.db.Exec(`
		INSERT INTO usages (
			symbol_id, row, col, context,
			arg_count, is_method_call, is_constructor, receiver_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		usage.SymbolID,
		usage.Row,
		usage.Col,
		usage.Context,
		usage.ArgCount,
		boolToInt(usage.IsMethodCall),
		boolToInt(usage.IsConstructor),
		nullIfEmpty(usage.ReceiverName),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage: %w", err)
	}

	usage.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get usage id: %w", err)
	}
	return nil
}

// GetForSymbol returns a symbol's usages in source order.
func (r *UsageRepository) GetForSymbol(symbolID int64) ([]*UsageRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol_id, row, col, context,
		       arg_count, is_method_call, is_constructor, receiver_name
		FROM usages
		WHERE symbol_id = ?
		ORDER BY row, col
	`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usages: %w", err)
	}
	defer rows.Close()

	var usages []*UsageRecord
	for rows.Next() {
		var usage UsageRecord
		var argCount sql.NullInt64
		var receiverName sql.NullString
		var isMethodCall, isConstructor int
		err := rows.Scan(
			&usage.ID, &usage.SymbolID, &usage.Row, &usage.Col, &usage.Context,
			&argCount, &isMethodCall, &isConstructor, &receiverName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		if argCount.Valid {
			n := int(argCount.Int64)
			usage.ArgCount = &n
		}
		usage.IsMethodCall = isMethodCall == 1
		usage.IsConstructor = isConstructor == 1
		usage.ReceiverName = receiverName.String
		usages = append(usages, &usage)
	}
	return usages, rows.Err()
}

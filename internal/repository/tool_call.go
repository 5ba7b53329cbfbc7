package repository

import (
	"time"

	"broker_mcp/internal/database"
	"broker_mcp/internal/models"
)

// ToolCallRepository handles the tool call audit log.
type ToolCallRepository struct {
	db *database.DB
}

// NewToolCallRepository creates a new ToolCallRepository.
func NewToolCallRepository(db *database.DB) *ToolCallRepository {
	return &ToolCallRepository{db: db}
}

// Create inserts a tool call and returns its ID.
func (r *ToolCallRepository) Create(c *models.ToolCall) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO tool_calls (tool, broker, success, arguments, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Tool, c.Broker, boolToInt(c.Success), c.Arguments, c.Error, c.DurationMS, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListByBroker returns the newest calls for broker first.
func (r *ToolCallRepository) ListByBroker(broker string, p Pagination) (Page[*models.ToolCall], error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM tool_calls WHERE broker = ?`, broker).Scan(&total); err != nil {
		return Page[*models.ToolCall]{}, err
	}

	rows, err := r.db.Query(`
		SELECT id, tool, broker, success, COALESCE(arguments, ''), COALESCE(error, ''), duration_ms, created_at
		FROM tool_calls
		WHERE broker = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, broker, p.Limit, p.Offset)
	if err != nil {
		return Page[*models.ToolCall]{}, err
	}
	defer rows.Close()

	var calls []*models.ToolCall
	for rows.Next() {
		c := &models.ToolCall{}
		var success int
		if err := rows.Scan(&c.ID, &c.Tool, &c.Broker, &success, &c.Arguments, &c.Error, &c.DurationMS, &c.CreatedAt); err != nil {
			return Page[*models.ToolCall]{}, err
		}
		c.Success = success == 1
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return Page[*models.ToolCall]{}, err
	}
	return newPage(calls, total, p), nil
}

// DeleteOlderThan removes calls recorded before now minus d.
func (r *ToolCallRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM tool_calls WHERE created_at < ?`, time.Now().UTC().Add(-d))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

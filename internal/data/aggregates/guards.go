package aggregates

import (
	"strings"

	"github.com/google/uuid"
	"github.com/yungbote/proofstake-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// CASGuard provides status compare-and-set helpers for aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.DB(nil), nil
	}
	if g.db != nil {
		return dbc.DB(g.db), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByStatus updates a row only when id+status guard matches.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowedStatuses []string, updates map[string]any) (bool, error) {
	return g.UpdateByStatusWhere(dbc, table, id, allowedStatuses, "", nil, updates)
}

// UpdateByStatusWhere is UpdateByStatus with an extra predicate evaluated at write time.
func (g CASGuard) UpdateByStatusWhere(dbc dbctx.Context, table string, id uuid.UUID, allowedStatuses []string, where string, args []any, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByStatus")
	}
	if len(allowedStatuses) == 0 {
		return false, ValidationError("allowedStatuses must not be empty")
	}
	if len(updates) == 0 {
		return false, ValidationError("updates must not be empty")
	}
	q := db.Table(table).Where("id = ? AND status IN ?", id, allowedStatuses)
	if where = strings.TrimSpace(where); where != "" {
		q = q.Where(where, args...)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireStatusAllowed rejects transitions from statuses outside allowed as structural.
func RequireStatusAllowed(current string, allowed ...string) error {
	current = strings.TrimSpace(current)
	if len(allowed) == 0 {
		return ValidationError("allowed statuses cannot be empty")
	}
	for _, s := range allowed {
		if strings.EqualFold(current, strings.TrimSpace(s)) {
			return nil
		}
	}
	return StructuralError("status transition not allowed from " + current)
}

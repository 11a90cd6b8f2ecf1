package postgres

import (
	"time"

	"github.com/riskibarqy/league-import/internal/domain/audit"
)

type auditTableModel struct {
	ID         int64     `db:"id"`
	RunID      string    `db:"run_id"`
	EntityType string    `db:"entity_type"`
	EntityID   int64     `db:"entity_id"`
	NaturalKey string    `db:"natural_key"`
	RecordedAt time.Time `db:"recorded_at"`
}

func (m auditTableModel) toDomain() audit.Entry {
	return audit.Entry{
		ID:         m.ID,
		RunID:      m.RunID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		NaturalKey: m.NaturalKey,
		RecordedAt: m.RecordedAt,
	}
}

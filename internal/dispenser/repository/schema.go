package repository

import "context"

// schema is applied at startup; every statement must be idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS medications (
		box_id           INTEGER PRIMARY KEY CONSTRAINT medications_box_id_check CHECK (box_id >= 1),
		medication_id    INTEGER NOT NULL DEFAULT 0,
		medication_name  VARCHAR(100) NOT NULL,
		total_pills      INTEGER NOT NULL DEFAULT 0 CONSTRAINT medications_total_pills_check CHECK (total_pills >= 0),
		pills_per_intake INTEGER NOT NULL DEFAULT 1 CONSTRAINT medications_pills_per_intake_check CHECK (pills_per_intake > 0),
		doses_per_day    SMALLINT NOT NULL DEFAULT 1 CONSTRAINT medications_doses_per_day_check CHECK (doses_per_day IN (1, 2)),
		schedule_time_1  TIME NOT NULL,
		schedule_time_2  TIME,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT medications_schedule_check CHECK ((doses_per_day = 2) = (schedule_time_2 IS NOT NULL))
	)`,
	`COMMENT ON COLUMN medications.medication_id IS 'external reference, not unique'`,
}

// EnsureSchema creates the medications table when it does not exist yet
func (r *MedicationRepository) EnsureSchema(ctx context.Context) error {
	return r.db.Migrate(ctx, schema)
}

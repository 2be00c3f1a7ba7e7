package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pillbox/pillbox-backend/pkg/database"
	"github.com/pillbox/pillbox-backend/pkg/errors"
)

// Medication is the schedule and stock loaded into one dispenser box
type Medication struct {
	BoxID          int       `db:"box_id" json:"box_id"`
	MedicationID   int       `db:"medication_id" json:"medication_id"`
	Name           string    `db:"medication_name" json:"medication_name"`
	TotalPills     int       `db:"total_pills" json:"total_pills"`
	PillsPerIntake int       `db:"pills_per_intake" json:"pills_per_intake"`
	DosesPerDay    int       `db:"doses_per_day" json:"doses_per_day"`
	ScheduleTime1  string    `db:"schedule_time_1" json:"schedule_time_1"`
	ScheduleTime2  *string   `db:"schedule_time_2" json:"schedule_time_2,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TwiceDaily reports whether the box dispenses at two times of day
func (m *Medication) TwiceDaily() bool {
	return m.DosesPerDay == 2
}

// Times are stored as TIME and read back as HH:MM
const medicationColumns = `box_id, medication_id, medication_name, total_pills, pills_per_intake, doses_per_day,
		TO_CHAR(schedule_time_1, 'HH24:MI') AS schedule_time_1,
		TO_CHAR(schedule_time_2, 'HH24:MI') AS schedule_time_2,
		created_at, updated_at`

// MedicationRepository handles medication persistence
type MedicationRepository struct {
	db *database.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// Insert stores a medication in an empty box
func (r *MedicationRepository) Insert(ctx context.Context, m *Medication) error {
	query := `
		INSERT INTO medications (
			box_id, medication_id, medication_name, total_pills, pills_per_intake,
			doses_per_day, schedule_time_1, schedule_time_2
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.BoxID, m.MedicationID, m.Name, m.TotalPills, m.PillsPerIntake,
		m.DosesPerDay, m.ScheduleTime1, m.ScheduleTime2,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return mapError(err, "insert medication")
	}
	return nil
}

// Update overwrites the editable fields of an occupied box.
// medication_id is kept as entered on insert.
func (r *MedicationRepository) Update(ctx context.Context, m *Medication) error {
	query := `
		UPDATE medications SET
			medication_name = $2, total_pills = $3, pills_per_intake = $4,
			doses_per_day = $5, schedule_time_1 = $6, schedule_time_2 = $7,
			updated_at = NOW()
		WHERE box_id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		m.BoxID, m.Name, m.TotalPills, m.PillsPerIntake,
		m.DosesPerDay, m.ScheduleTime1, m.ScheduleTime2,
	)
	if err != nil {
		return mapError(err, "update medication")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update medication: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("medication")
	}
	return nil
}

// Decrement subtracts amount from the box stock, clamping at zero, and
// returns what is left. The clamp happens in the statement itself so
// concurrent reports cannot drive the count negative. The amount is cast to
// bigint so counts beyond the integer column range still clamp to zero.
func (r *MedicationRepository) Decrement(ctx context.Context, boxID, amount int) (int, error) {
	query := `
		UPDATE medications SET total_pills = GREATEST(total_pills - $1::bigint, 0), updated_at = NOW()
		WHERE box_id = $2
		RETURNING total_pills
	`

	var remaining int
	if err := r.db.QueryRowxContext(ctx, query, amount, boxID).Scan(&remaining); err != nil {
		if err == sql.ErrNoRows {
			return 0, errors.NotFound("medication")
		}
		return 0, mapError(err, "decrement stock")
	}
	return remaining, nil
}

// Delete empties a box. It reports whether a row was removed; deleting an
// empty box is not an error.
func (r *MedicationRepository) Delete(ctx context.Context, boxID int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE box_id = $1`, boxID)
	if err != nil {
		return false, fmt.Errorf("delete medication: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete medication: %w", err)
	}
	return rows > 0, nil
}

// ListAll returns every occupied box in ascending box order
func (r *MedicationRepository) ListAll(ctx context.Context) ([]*Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications ORDER BY box_id ASC`

	meds := []*Medication{}
	if err := r.db.SelectContext(ctx, &meds, query); err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

// GetByBox returns the medication loaded in a box
func (r *MedicationRepository) GetByBox(ctx context.Context, boxID int) (*Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE box_id = $1`

	var m Medication
	if err := r.db.GetContext(ctx, &m, query, boxID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medication")
		}
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return &m, nil
}

func mapError(err error, op string) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return fmt.Errorf("%s: %w", op, err)
}

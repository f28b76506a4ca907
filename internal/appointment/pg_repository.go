package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `a.id, a.full_name, a.date_of_birth, a.phone, a.email,
	a.appointment_date, a.slot_id, COALESCE(ts.label, ''), a.services, a.is_new_user,
	a.notification_status, a.created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.FullName,
		&a.DateOfBirth,
		&a.Phone,
		&a.Email,
		&a.Date,
		&a.SlotID,
		&a.SlotLabel,
		&a.Services,
		&a.IsNewUser,
		&a.NotificationStatus,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// dayKey is the advisory lock key serializing ledger writes for one date.
func dayKey(date time.Time) int64 {
	return date.Unix() / 86400
}

// Interface methods

func (r *PgRepository) SyncTimeSlots(ctx context.Context, slots []TimeSlot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO time_slots (id, label)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label
		`, s.ID, s.Label)
		if err != nil {
			return fmt.Errorf("upsert time slot %d: %w", s.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ListTimeSlots(ctx context.Context) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, label FROM time_slots ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		var s TimeSlot
		if err := rows.Scan(&s.ID, &s.Label); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) OpenSlotIDs(ctx context.Context, date time.Time) ([]int, error) {
	return openSlotIDs(ctx, r.pool, date, false)
}

func (r *PgRepository) BookedSlotIDs(ctx context.Context, date time.Time) ([]int, error) {
	return slotIDs(ctx, r.pool, `SELECT slot_id FROM appointments WHERE appointment_date = $1 ORDER BY slot_id`, date)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func openSlotIDs(ctx context.Context, q querier, date time.Time, forUpdate bool) ([]int, error) {
	query := `SELECT slot_id FROM open_slots WHERE slot_date = $1 ORDER BY slot_id`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return slotIDs(ctx, q, query, date)
}

func slotIDs(ctx context.Context, q querier, query string, date time.Time) ([]int, error) {
	rows, err := q.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgRepository) ReconcileOpenSlots(ctx context.Context, date time.Time, desired []int, now time.Time) (Reconciliation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Reconciliation{}, err
	}
	defer tx.Rollback(ctx)

	// Rows that do not exist yet cannot be locked with FOR UPDATE, so
	// concurrent reconciliations of one date are serialized explicitly.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, dayKey(date)); err != nil {
		return Reconciliation{}, fmt.Errorf("lock ledger date: %w", err)
	}

	current, err := openSlotIDs(ctx, tx, date, true)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("read open slots: %w", err)
	}

	// Read after the ledger lock so a booking that consumed a row we waited
	// on is visible here.
	booked, err := slotIDs(ctx, tx, `
		SELECT slot_id FROM appointments WHERE appointment_date = $1
	`, date)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("read booked slots: %w", err)
	}

	free, held := Split(desired, booked)
	toAdd, toRemove := Diff(current, free)

	if len(toAdd) > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO open_slots (slot_date, slot_id, created_at, updated_at)
			SELECT $1, t.slot_id, $3, $3 FROM unnest($2::int[]) AS t(slot_id)
			WHERE NOT EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.appointment_date = $1 AND a.slot_id = t.slot_id
			)
			ON CONFLICT (slot_date, slot_id) DO NOTHING
		`, date, toAdd, now)
		if err != nil {
			return Reconciliation{}, fmt.Errorf("insert open slots: %w", err)
		}
	}

	if len(toRemove) > 0 {
		_, err := tx.Exec(ctx, `
			DELETE FROM open_slots
			WHERE slot_date = $1
			  AND slot_id = ANY($2::int[])
		`, date, toRemove)
		if err != nil {
			return Reconciliation{}, fmt.Errorf("delete open slots: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Reconciliation{}, fmt.Errorf("commit reconciliation: %w", err)
	}

	return Reconciliation{
		Date:    date,
		Added:   toAdd,
		Removed: toRemove,
		Open:    Normalize(free),
		Booked:  held,
	}, nil
}

func (r *PgRepository) PruneOpenSlotsBefore(ctx context.Context, date time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM open_slots WHERE slot_date < $1`, date)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ReserveSlot(ctx context.Context, in NewAppointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// A concurrent reservation holding this row blocks here; once it commits
	// the row is gone and we see no rows.
	var one int
	err = tx.QueryRow(ctx, `
		SELECT 1 FROM open_slots
		WHERE slot_date = $1 AND slot_id = $2
		FOR UPDATE
	`, in.Date, in.SlotID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("check open slot: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM open_slots WHERE slot_date = $1 AND slot_id = $2
	`, in.Date, in.SlotID); err != nil {
		return nil, fmt.Errorf("consume open slot: %w", err)
	}

	row := tx.QueryRow(ctx, `
		WITH a AS (
			INSERT INTO appointments
				(id, full_name, date_of_birth, phone, email, appointment_date, slot_id,
				 services, is_new_user, notification_status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', now())
			RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM a
		LEFT JOIN time_slots ts ON ts.id = a.slot_id
	`, uuid.New(), in.FullName, in.DateOfBirth, in.Phone, in.Email, in.Date, in.SlotID, in.Services, in.IsNewUser)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("commit reservation: %w", err)
	}

	return appt, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN time_slots ts ON ts.id = a.slot_id
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN time_slots ts ON ts.id = a.slot_id
		WHERE ($1::date IS NULL OR a.appointment_date = $1::date)
		ORDER BY a.appointment_date, a.slot_id
		LIMIT $2 OFFSET $3
	`, f.Date, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID, reopen bool) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		WITH a AS (
			DELETE FROM appointments WHERE id = $1 RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM a
		LEFT JOIN time_slots ts ON ts.id = a.slot_id
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if reopen {
		_, err := tx.Exec(ctx, `
			INSERT INTO open_slots (slot_date, slot_id, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (slot_date, slot_id) DO NOTHING
		`, appt.Date, appt.SlotID)
		if err != nil {
			return nil, fmt.Errorf("reopen slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) SetNotificationStatus(ctx context.Context, id uuid.UUID, status NotificationStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET notification_status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backend-booking/internal/booking"
	"backend-booking/internal/helper"
	"backend-booking/internal/models"
)

// Store persists bookings and loyalty ledgers in MySQL. Queue membership is
// state = 'queued' plus queue_position; there is no queue table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, fn)
}

func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// forUpdate adds a row lock when ctx carries a transaction.
func forUpdate(ctx context.Context, query string) string {
	if txFromContext(ctx) != nil {
		return query + " FOR UPDATE"
	}
	return query
}

const bookingColumns = `id, customer_id, advisor_id, assignment, service_type,
	vehicle_make, vehicle_model, plate_number, vehicle_year, notes,
	slot_date, time_window, state, queue_position, estimated_service_time,
	modifiable_until, enqueued_at, created_at, updated_at`

var seatStates = func() string {
	quoted := make([]string, 0, len(models.SeatHoldingStates))
	for _, st := range models.SeatHoldingStates {
		quoted = append(quoted, "'"+string(st)+"'")
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}()

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var (
		b         models.Booking
		advisorID sql.NullString
		notes     sql.NullString
		slotDate  time.Time
		eta       sql.NullTime
		enqueued  sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.CustomerID, &advisorID, &b.Assignment, &b.ServiceType,
		&b.Vehicle.Make, &b.Vehicle.Model, &b.Vehicle.PlateNumber, &b.Vehicle.Year, &notes,
		&slotDate, &b.Slot.Window, &b.State, &b.QueuePosition, &eta,
		&b.ModifiableUntil, &enqueued, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return models.Booking{}, err
	}
	b.AdvisorID = advisorID.String
	b.Notes = notes.String
	b.Slot.Date = slotDate.Format(helper.DateLayout)
	if eta.Valid {
		t := eta.Time
		b.EstimatedServiceTime = &t
	}
	if enqueued.Valid {
		t := enqueued.Time
		b.EnqueuedAt = &t
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *Store) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	query := forUpdate(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`)
	b, err := scanBooking(s.q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, fmt.Errorf("booking %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return models.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (s *Store) InsertBooking(ctx context.Context, b models.Booking) error {
	const query = `
INSERT INTO bookings (` + bookingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q(ctx).ExecContext(ctx, query,
		b.ID, b.CustomerID, nullString(b.AdvisorID), b.Assignment, b.ServiceType,
		b.Vehicle.Make, b.Vehicle.Model, b.Vehicle.PlateNumber, b.Vehicle.Year, nullString(b.Notes),
		b.Slot.Date, b.Slot.Window, b.State, b.QueuePosition, nullTime(b.EstimatedServiceTime),
		b.ModifiableUntil.UTC(), nullTime(b.EnqueuedAt), b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if isDuplicateActiveAdvisor(err) {
		return booking.ErrCapacityConflict
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Store) UpdateBooking(ctx context.Context, b models.Booking) error {
	const query = `
UPDATE bookings
SET advisor_id = ?, assignment = ?, state = ?, queue_position = ?,
	estimated_service_time = ?, notes = ?, updated_at = ?
WHERE id = ?`

	_, err := s.q(ctx).ExecContext(ctx, query,
		nullString(b.AdvisorID), b.Assignment, b.State, b.QueuePosition,
		nullTime(b.EstimatedServiceTime), nullString(b.Notes), b.UpdatedAt.UTC(),
		b.ID,
	)
	if isDuplicateActiveAdvisor(err) {
		return booking.ErrCapacityConflict
	}
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	return nil
}

func (s *Store) ListCustomerBookings(ctx context.Context, customerID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_id = ? ORDER BY created_at, id`
	return s.listBookings(ctx, query, customerID)
}

func (s *Store) listBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}

func (s *Store) CountSeatHolders(ctx context.Context, slot models.SlotKey) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE slot_date = ? AND time_window = ? AND state IN ` + seatStates

	var n int
	if err := s.q(ctx).QueryRowContext(ctx, query, slot.Date, slot.Window).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seat holders: %w", err)
	}
	return n, nil
}

func (s *Store) SeatHolderAdvisorIDs(ctx context.Context, slot models.SlotKey) ([]string, error) {
	const query = `
SELECT active_advisor_id FROM bookings
WHERE slot_date = ? AND time_window = ? AND active_advisor_id IS NOT NULL
ORDER BY active_advisor_id`

	rows, err := s.q(ctx).QueryContext(ctx, query, slot.Date, slot.Window)
	if err != nil {
		return nil, fmt.Errorf("list seat holders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seat holder: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ListQueued(ctx context.Context, slot models.SlotKey) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
WHERE slot_date = ? AND time_window = ? AND state = 'queued'
ORDER BY queue_position, enqueued_at`
	return s.listBookings(ctx, forUpdate(ctx, query), slot.Date, slot.Window)
}

func (s *Store) CountQueued(ctx context.Context, slot models.SlotKey) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE slot_date = ? AND time_window = ? AND state = 'queued'`

	var n int
	if err := s.q(ctx).QueryRowContext(ctx, query, slot.Date, slot.Window).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queued: %w", err)
	}
	return n, nil
}

func (s *Store) ShiftQueue(ctx context.Context, slot models.SlotKey, afterPosition int) error {
	const query = `
UPDATE bookings
SET queue_position = queue_position - 1
WHERE slot_date = ? AND time_window = ? AND state = 'queued' AND queue_position > ?
ORDER BY queue_position`

	if _, err := s.q(ctx).ExecContext(ctx, query, slot.Date, slot.Window, afterPosition); err != nil {
		return fmt.Errorf("shift queue: %w", err)
	}
	return nil
}

// SetQueueEstimates writes every estimate with one UPDATE ... CASE statement.
func (s *Store) SetQueueEstimates(ctx context.Context, estimates map[string]time.Time) error {
	if len(estimates) == 0 {
		return nil
	}
	ids := make([]string, 0, len(estimates))
	for id := range estimates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		cases strings.Builder
		args  = make([]any, 0, len(ids)*3)
	)
	for _, id := range ids {
		cases.WriteString(" WHEN ? THEN ?")
		args = append(args, id, estimates[id].UTC())
	}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	query := `UPDATE bookings SET estimated_service_time = CASE id` + cases.String() +
		` END WHERE id IN (` + placeholders + `)`
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set queue estimates: %w", err)
	}
	return nil
}

func (s *Store) LoyaltyForUpdate(ctx context.Context, customerID string) (models.LoyaltyLedger, error) {
	return s.getLoyalty(ctx, forUpdate(ctx, loyaltyQuery), customerID)
}

func (s *Store) GetLoyalty(ctx context.Context, customerID string) (models.LoyaltyLedger, error) {
	return s.getLoyalty(ctx, loyaltyQuery, customerID)
}

const loyaltyQuery = `SELECT customer_id, booking_count, is_eligible, updated_at FROM loyalty_ledgers WHERE customer_id = ?`

func (s *Store) getLoyalty(ctx context.Context, query, customerID string) (models.LoyaltyLedger, error) {
	var l models.LoyaltyLedger
	err := s.q(ctx).QueryRowContext(ctx, query, customerID).
		Scan(&l.CustomerID, &l.BookingCount, &l.IsEligible, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LoyaltyLedger{CustomerID: customerID}, nil
	}
	if err != nil {
		return models.LoyaltyLedger{}, fmt.Errorf("get loyalty: %w", err)
	}
	return l, nil
}

func (s *Store) SaveLoyalty(ctx context.Context, l models.LoyaltyLedger) error {
	const query = `
INSERT INTO loyalty_ledgers (customer_id, booking_count, is_eligible, updated_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	booking_count = VALUES(booking_count),
	is_eligible = VALUES(is_eligible),
	updated_at = VALUES(updated_at)`

	if _, err := s.q(ctx).ExecContext(ctx, query, l.CustomerID, l.BookingCount, l.IsEligible, l.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("save loyalty: %w", err)
	}
	return nil
}

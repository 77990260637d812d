package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore implements ReservationStore on a Postgres schema owned by this
// service, for deployments that do not sit in front of an external FHIR
// endpoint. The version_id column backs the optimistic concurrency token.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a ReservationStore backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) ReservationStore {
	return &pgStore{pool: pool}
}

const apptCols = `id, status, description, category_code, start_time, end_time, version_id`

func (s *pgStore) List(ctx context.Context, f ListFilter) ([]*Reservation, error) {
	query := `SELECT DISTINCT a.id, a.status, a.description, a.category_code,
		a.start_time, a.end_time, a.version_id
		FROM appointment a`
	var args []interface{}
	idx := 1
	where := ""

	addActor := func(kind ActorKind, id string) {
		query += fmt.Sprintf(` JOIN appointment_actor aa%d ON aa%d.appointment_id = a.id
			AND aa%d.actor_kind = $%d AND aa%d.actor_id = $%d`, idx, idx, idx, idx, idx, idx+1)
		args = append(args, string(kind), id)
		idx += 2
	}
	if f.PatientID != "" {
		addActor(ActorPatient, f.PatientID)
	}
	if f.PractitionerID != "" {
		addActor(ActorPractitioner, f.PractitionerID)
	}
	if f.LocationID != "" {
		addActor(ActorLocation, f.LocationID)
	}
	if !f.Date.IsZero() {
		day := f.Date.UTC().Truncate(24 * time.Hour)
		where += fmt.Sprintf(` AND a.start_time >= $%d AND a.start_time < $%d`, idx, idx+1)
		args = append(args, day, day.Add(24*time.Hour))
		idx += 2
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if where != "" {
		query += ` WHERE` + where[4:]
	}
	query += ` ORDER BY a.start_time, a.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list", StoreUnreachable, err)
	}
	defer rows.Close()

	var reservations []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, storeError("list", StoreMalformed, err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list", StoreUnreachable, err)
	}

	for _, r := range reservations {
		if err := s.loadActors(ctx, r); err != nil {
			return nil, err
		}
	}
	return reservations, nil
}

func (s *pgStore) Get(ctx context.Context, id string) (*Reservation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id)
	r, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storeError("get", StoreNotFound, err)
		}
		return nil, storeError("get", StoreUnreachable, err)
	}
	if err := s.loadActors(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *pgStore) Create(ctx context.Context, r *Reservation) (*Reservation, error) {
	created := *r
	created.ID = uuid.New().String()
	created.Version = "1"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("create", StoreUnreachable, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointment (id, status, description, category_code, start_time, end_time, version_id)
		VALUES ($1, $2, $3, $4, $5, $6, 1)`,
		created.ID, string(created.Status), nullable(created.Description), nullable(created.Category),
		created.Interval.Start, created.Interval.End)
	if err != nil {
		return nil, storeError("create", StoreUnreachable, err)
	}
	if err := insertActors(ctx, tx, created.ID, created.Actors); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("create", StoreUnreachable, err)
	}
	return &created, nil
}

func (s *pgStore) Update(ctx context.Context, id string, r *Reservation) (*Reservation, error) {
	expected, err := strconv.Atoi(r.Version)
	if err != nil || expected < 1 {
		return nil, storeError("update", StoreMalformed, fmt.Errorf("bad version token %q", r.Version))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("update", StoreUnreachable, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointment
		SET status = $2, description = $3, category_code = $4,
			start_time = $5, end_time = $6, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1 AND version_id = $7`,
		id, string(r.Status), nullable(r.Description), nullable(r.Category),
		r.Interval.Start, r.Interval.End, expected)
	if err != nil {
		return nil, storeError("update", StoreUnreachable, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the record is gone or someone got there first.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, storeError("update", StoreUnreachable, err)
		}
		if !exists {
			return nil, storeError("update", StoreNotFound, fmt.Errorf("appointment %s", id))
		}
		return nil, storeError("update", StoreVersionConflict, fmt.Errorf("appointment %s changed since read", id))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM appointment_actor WHERE appointment_id = $1`, id); err != nil {
		return nil, storeError("update", StoreUnreachable, err)
	}
	if err := insertActors(ctx, tx, id, r.Actors); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("update", StoreUnreachable, err)
	}

	updated := *r
	updated.ID = id
	updated.Version = strconv.Itoa(expected + 1)
	return &updated, nil
}

func (s *pgStore) loadActors(ctx context.Context, r *Reservation) error {
	rows, err := s.pool.Query(ctx,
		`SELECT actor_kind, actor_id FROM appointment_actor WHERE appointment_id = $1 ORDER BY actor_kind, actor_id`,
		r.ID)
	if err != nil {
		return storeError("list", StoreUnreachable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return storeError("list", StoreMalformed, err)
		}
		r.Actors = append(r.Actors, Actor{Kind: ActorKind(kind), ID: id})
	}
	if err := rows.Err(); err != nil {
		return storeError("list", StoreUnreachable, err)
	}
	return nil
}

func insertActors(ctx context.Context, tx pgx.Tx, apptID string, actors []Actor) error {
	for _, a := range actors {
		_, err := tx.Exec(ctx, `
			INSERT INTO appointment_actor (appointment_id, actor_kind, actor_id)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			apptID, string(a.Kind), a.ID)
		if err != nil {
			return storeError("update", StoreUnreachable, err)
		}
	}
	return nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var (
		r           Reservation
		status      string
		description *string
		category    *string
		start, end  time.Time
		version     int
	)
	if err := row.Scan(&r.ID, &status, &description, &category, &start, &end, &version); err != nil {
		return nil, err
	}
	iv, err := NewInterval(start, end)
	if err != nil {
		return nil, err
	}
	r.Interval = iv
	r.Status = ParseStatus(status)
	r.Version = strconv.Itoa(version)
	if description != nil {
		r.Description = *description
	}
	if category != nil {
		r.Category = *category
	}
	return &r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

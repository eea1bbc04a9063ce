package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/example/bus-tracking/internal/geo"
	"github.com/example/bus-tracking/internal/models"
)

type PostgresPositionStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func NewPostgresPositionStore(db *sql.DB) *PostgresPositionStore {
	return &PostgresPositionStore{db: db}
}

// Upsert inserts the record on first contact (status defaulting to Running)
// and otherwise updates position columns only, leaving status untouched.
// A write with a timestamp older than the stored row matches no row and is
// reported as stale.
func (p *PostgresPositionStore) Upsert(ctx context.Context, pos models.BusPosition) error {
	if !geo.ValidCoord(pos.Loc) {
		return ErrInvalidCoordinate
	}
	status := pos.Status
	if !status.Valid() {
		status = models.StatusRunning
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO bus_positions(id, nickname, latitude, longitude, status, updated_at)
		VALUES($1, NULLIF($2,''), $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			nickname   = COALESCE(NULLIF(EXCLUDED.nickname,''), bus_positions.nickname),
			latitude   = EXCLUDED.latitude,
			longitude  = EXCLUDED.longitude,
			updated_at = EXCLUDED.updated_at
		WHERE bus_positions.updated_at <= EXCLUDED.updated_at`,
		pos.BusID, pos.Nickname, pos.Loc.Lat, pos.Loc.Lng, string(status), pos.UpdatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrStaleTimestamp
	}
	return nil
}

func (p *PostgresPositionStore) SetStatus(ctx context.Context, busID string, status models.BusStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE bus_positions SET status=$1 WHERE id=$2`, string(status), busID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresPositionStore) Get(ctx context.Context, busID string) (models.BusPosition, bool, error) {
	var pos models.BusPosition
	var nickname sql.NullString
	var status string
	err := p.db.QueryRowContext(ctx,
		`SELECT id, nickname, latitude, longitude, status, updated_at FROM bus_positions WHERE id=$1`,
		busID).Scan(&pos.BusID, &nickname, &pos.Loc.Lat, &pos.Loc.Lng, &status, &pos.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BusPosition{}, false, nil
	}
	if err != nil {
		return models.BusPosition{}, false, err
	}
	pos.Nickname = nickname.String
	pos.Status = models.BusStatus(status)
	return pos, true, nil
}

func (p *PostgresPositionStore) GetAll(ctx context.Context) ([]models.BusPosition, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, nickname, latitude, longitude, status, updated_at FROM bus_positions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.BusPosition
	for rows.Next() {
		var pos models.BusPosition
		var nickname sql.NullString
		var status string
		if err := rows.Scan(&pos.BusID, &nickname, &pos.Loc.Lat, &pos.Loc.Lng, &status, &pos.UpdatedAt); err != nil {
			return nil, err
		}
		pos.Nickname = nickname.String
		pos.Status = models.BusStatus(status)
		out = append(out, pos)
	}
	return out, rows.Err()
}

package profiles

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/bus-tracking/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Get(ctx context.Context, id string) (models.Profile, bool, error) {
	var prof models.Profile
	var role string
	var busID sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, role, bus_id FROM profiles WHERE id=$1`, id).
		Scan(&prof.ID, &prof.Name, &role, &busID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, false, nil
	}
	if err != nil {
		return models.Profile{}, false, err
	}
	prof.Role = models.Role(role)
	prof.BusID = busID.String
	return prof, true, nil
}

func (p *PostgresStore) RidersForBus(ctx context.Context, busID string) ([]models.Profile, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, role, bus_id FROM profiles WHERE bus_id=$1 AND role=$2`,
		busID, string(models.RoleStudent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Profile
	for rows.Next() {
		var prof models.Profile
		var role string
		var assigned sql.NullString
		if err := rows.Scan(&prof.ID, &prof.Name, &role, &assigned); err != nil {
			return nil, err
		}
		prof.Role = models.Role(role)
		prof.BusID = assigned.String
		out = append(out, prof)
	}
	return out, rows.Err()
}

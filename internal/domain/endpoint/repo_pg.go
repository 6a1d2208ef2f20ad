package endpoint

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interlink/engine/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type endpointRepoPG struct{ pool *pgxpool.Pool }

func NewEndpointRepoPG(pool *pgxpool.Pool) EndpointRepository {
	return &endpointRepoPG{pool: pool}
}

func (r *endpointRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const endpointCols = `id, server_id, url, created_at`

func (r *endpointRepoPG) scanEndpoint(row pgx.Row) (*Endpoint, error) {
	var e Endpoint
	err := row.Scan(&e.ID, &e.ServerID, &e.URL, &e.CreatedAt)
	return &e, err
}

func (r *endpointRepoPG) CreateWithFields(ctx context.Context, e *Endpoint, fields []*Field) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		e.ID = uuid.New()
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO endpoint (id, server_id, url) VALUES ($1,$2,$3)`,
			e.ID, e.ServerID, e.URL); err != nil {
			return err
		}
		for _, f := range fields {
			f.ID = uuid.New()
			f.EndpointID = e.ID
			if _, err := r.conn(ctx).Exec(ctx, `
				INSERT INTO endpoint_field (id, endpoint_id, resource, path, name)
				VALUES ($1,$2,$3,$4,$5)`,
				f.ID, f.EndpointID, f.Resource, f.Path, f.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *endpointRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	return r.scanEndpoint(r.conn(ctx).QueryRow(ctx, `SELECT `+endpointCols+` FROM endpoint WHERE id = $1`, id))
}

func (r *endpointRepoPG) GetByURL(ctx context.Context, url string) (*Endpoint, error) {
	return r.scanEndpoint(r.conn(ctx).QueryRow(ctx, `SELECT `+endpointCols+` FROM endpoint WHERE url = $1`, url))
}

func (r *endpointRepoPG) GetByServerAndURL(ctx context.Context, serverID uuid.UUID, url string) (*Endpoint, error) {
	return r.scanEndpoint(r.conn(ctx).QueryRow(ctx,
		`SELECT `+endpointCols+` FROM endpoint WHERE server_id = $1 AND url = $2`, serverID, url))
}

func (r *endpointRepoPG) ListByServer(ctx context.Context, serverID uuid.UUID) ([]*Endpoint, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+endpointCols+` FROM endpoint WHERE server_id = $1 ORDER BY created_at`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Endpoint
	for rows.Next() {
		e, err := r.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *endpointRepoPG) ListFields(ctx context.Context, endpointID uuid.UUID) ([]*Field, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, endpoint_id, resource, path, name
		FROM endpoint_field WHERE endpoint_id = $1 ORDER BY path`, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.ID, &f.EndpointID, &f.Resource, &f.Path, &f.Name); err != nil {
			return nil, err
		}
		items = append(items, &f)
	}
	return items, rows.Err()
}

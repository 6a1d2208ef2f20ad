package server

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

type serverRepoPG struct{ pool *pgxpool.Pool }

func NewServerRepoPG(pool *pgxpool.Pool) ServerRepository {
	return &serverRepoPG{pool: pool}
}

func (r *serverRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const serverCols = `id, name, ip, port, protocol, status, created_at, updated_at`

func (r *serverRepoPG) scanServer(row pgx.Row) (*Server, error) {
	var s Server
	err := row.Scan(&s.ID, &s.Name, &s.IP, &s.Port, &s.Protocol, &s.Status,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *serverRepoPG) Create(ctx context.Context, s *Server) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO server (id, name, ip, port, protocol, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.Name, s.IP, s.Port, s.Protocol, s.Status)
	return err
}

func (r *serverRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Server, error) {
	return r.scanServer(r.conn(ctx).QueryRow(ctx, `SELECT `+serverCols+` FROM server WHERE id = $1`, id))
}

func (r *serverRepoPG) GetByName(ctx context.Context, name string) (*Server, error) {
	return r.scanServer(r.conn(ctx).QueryRow(ctx, `SELECT `+serverCols+` FROM server WHERE name = $1`, name))
}

func (r *serverRepoPG) Update(ctx context.Context, s *Server) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE server SET name=$2, ip=$3, port=$4, protocol=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.IP, s.Port, s.Protocol)
	return err
}

func (r *serverRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE server SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	return err
}

func (r *serverRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM server WHERE id = $1`, id)
	return err
}

func (r *serverRepoPG) List(ctx context.Context) ([]*Server, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serverCols+` FROM server ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Server
	for rows.Next() {
		s, err := r.scanServer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

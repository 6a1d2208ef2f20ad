package route

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

type routeRepoPG struct{ pool *pgxpool.Pool }

func NewRouteRepoPG(pool *pgxpool.Pool) RouteRepository {
	return &routeRepoPG{pool: pool}
}

func (r *routeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const routeCols = `id, name, src_server_id, src_endpoint_id, dest_server_id, dest_endpoint_id, msg_type, created_at`

func (r *routeRepoPG) scanRoute(row pgx.Row) (*Route, error) {
	var rt Route
	err := row.Scan(&rt.ID, &rt.Name, &rt.SrcServerID, &rt.SrcEndpointID,
		&rt.DestServerID, &rt.DestEndpointID, &rt.MsgType, &rt.CreatedAt)
	return &rt, err
}

func (r *routeRepoPG) CreateWithRules(ctx context.Context, rt *Route, rules []*MappingRule) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		rt.ID = uuid.New()
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO route (id, name, src_server_id, src_endpoint_id, dest_server_id, dest_endpoint_id, msg_type)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			rt.ID, rt.Name, rt.SrcServerID, rt.SrcEndpointID,
			rt.DestServerID, rt.DestEndpointID, rt.MsgType); err != nil {
			return err
		}
		for i, rule := range rules {
			rule.ID = uuid.New()
			rule.RouteID = rt.ID
			rule.Position = i
			if _, err := r.conn(ctx).Exec(ctx, `
				INSERT INTO mapping_rule (id, route_id, position, src_field_id, dest_field_id, transform_type, config)
				VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				rule.ID, rule.RouteID, rule.Position, rule.SrcFieldID, rule.DestFieldID,
				rule.TransformType, rule.Config); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *routeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Route, error) {
	return r.scanRoute(r.conn(ctx).QueryRow(ctx, `SELECT `+routeCols+` FROM route WHERE id = $1`, id))
}

func (r *routeRepoPG) GetByName(ctx context.Context, name string) (*Route, error) {
	return r.scanRoute(r.conn(ctx).QueryRow(ctx, `SELECT `+routeCols+` FROM route WHERE name = $1`, name))
}

func (r *routeRepoPG) GetByEndpoints(ctx context.Context, srcEndpointID, destEndpointID uuid.UUID) (*Route, error) {
	return r.scanRoute(r.conn(ctx).QueryRow(ctx,
		`SELECT `+routeCols+` FROM route WHERE src_endpoint_id = $1 AND dest_endpoint_id = $2`,
		srcEndpointID, destEndpointID))
}

func (r *routeRepoPG) List(ctx context.Context) ([]*Route, error) {
	return r.queryRoutes(ctx, `SELECT `+routeCols+` FROM route ORDER BY created_at`)
}

func (r *routeRepoPG) ListBySrcEndpoint(ctx context.Context, srcEndpointID uuid.UUID) ([]*Route, error) {
	return r.queryRoutes(ctx,
		`SELECT `+routeCols+` FROM route WHERE src_endpoint_id = $1 ORDER BY created_at`, srcEndpointID)
}

func (r *routeRepoPG) queryRoutes(ctx context.Context, sql string, args ...interface{}) ([]*Route, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Route
	for rows.Next() {
		rt, err := r.scanRoute(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rt)
	}
	return items, rows.Err()
}

func (r *routeRepoPG) ListRules(ctx context.Context, routeID uuid.UUID) ([]*MappingRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, route_id, position, src_field_id, dest_field_id, transform_type, config
		FROM mapping_rule WHERE route_id = $1 ORDER BY position`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MappingRule
	for rows.Next() {
		var rule MappingRule
		if err := rows.Scan(&rule.ID, &rule.RouteID, &rule.Position, &rule.SrcFieldID, &rule.DestFieldID,
			&rule.TransformType, &rule.Config); err != nil {
			return nil, err
		}
		items = append(items, &rule)
	}
	return items, rows.Err()
}

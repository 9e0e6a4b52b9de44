package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
	"github.com/DanielJandric/embeddingsall-sub000/internal/tools"
)

// Querier is the subset of *pgxpool.Pool the tools need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Tools serves query_table, find_vacancy_alerts and get_registre_foncier.
type Tools struct {
	db Querier
}

// NewTools creates the structured-data tools over db.
func NewTools(db Querier) *Tools {
	return &Tools{db: db}
}

// Register adds the three methods to r.
func (t *Tools) Register(r *tools.Registry) error {
	for method, h := range map[string]tools.Handler{
		plan.MethodQueryTable:         t.QueryTable,
		plan.MethodFindVacancyAlerts:  t.FindVacancyAlerts,
		plan.MethodGetRegistreFoncier: t.GetRegistreFoncier,
	} {
		if err := r.Register(method, h); err != nil {
			return err
		}
	}
	return nil
}

// QueryTable reads rows from one whitelisted table.
func (t *Tools) QueryTable(ctx context.Context, params map[string]any) (any, error) {
	req, err := strategy.DecodeQueryTable(params)
	if err != nil {
		return nil, paramsError(err)
	}
	sql, args, err := buildQueryTable(req)
	if err != nil {
		return nil, err
	}
	rows, err := t.fetch(ctx, req.Table, sql, args)
	if err != nil {
		return nil, err
	}
	return envelope(rows, req.Table), nil
}

// FindVacancyAlerts lists buildings above the vacancy threshold.
func (t *Tools) FindVacancyAlerts(ctx context.Context, params map[string]any) (any, error) {
	req, err := strategy.DecodeVacancyAlerts(params)
	if err != nil {
		return nil, paramsError(err)
	}
	sql, args := buildVacancyAlerts(req)
	rows, err := t.fetch(ctx, plan.TableEtatsLocatifs, sql, args)
	if err != nil {
		return nil, err
	}
	env := envelope(rows, plan.TableEtatsLocatifs)
	if len(rows) == 0 {
		env.Metadata.Warnings = []string{fmt.Sprintf("no building above %.0f%% vacancy", req.Threshold*100)}
	}
	return env, nil
}

// GetRegistreFoncier returns land-registry extracts with servitudes and
// charges. Mutation history is included on request only.
func (t *Tools) GetRegistreFoncier(ctx context.Context, params map[string]any) (any, error) {
	req, err := strategy.DecodeLandRegistry(params)
	if err != nil {
		return nil, paramsError(err)
	}
	sql, args := buildLandRegistry(req)
	rows, err := t.fetch(ctx, plan.TableRegistresFonciers, sql, args)
	if err != nil {
		return nil, err
	}
	env := envelope(rows, plan.TableRegistresFonciers)
	if len(rows) == 0 {
		env.Metadata.Warnings = []string{"no land registry extract matches the given criteria"}
	}
	return env, nil
}

func (t *Tools) fetch(ctx context.Context, table, sql string, args []any) ([]map[string]any, error) {
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

func collect(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			if i < len(values) {
				row[f.Name] = jsonValue(values[i])
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return v
	}
}

func envelope(rows []map[string]any, table string) plan.Envelope {
	env := plan.Success(rows)
	env.Metadata.Count = len(rows)
	env.Metadata.DataSources = []string{"postgres:" + table}
	env.Metadata.QueryCost = 1
	return env
}

func paramsError(err error) error {
	if errors.Is(err, strategy.ErrInvalidParams) {
		return &plan.ToolError{Code: plan.CodeInvalidParams, Message: err.Error()}
	}
	return err
}

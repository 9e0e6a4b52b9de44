package postgres

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// columns is the identifier whitelist for query_table.
var columns = map[string][]string{
	plan.TableDocuments: {
		"id", "file_name", "document_type", "content", "metadata", "created_at", "updated_at",
	},
	plan.TablePropertyInsights: {
		"id", "property_key", "rent_total_chf", "rent_principal_chf", "document_ids", "insights", "updated_at",
	},
	plan.TableEtatsLocatifs: {
		"id", "file_name", "immeuble_nom", "immeuble_adresse", "immeuble_ville", "locataire",
		"loyer_annuel_total", "loyer_annuel_effectif", "taux_occupation_unites",
		"nb_unites_louees", "nb_unites_vacantes", "updated_at",
	},
	plan.TableRegistresFonciers: {
		"id", "file_name", "no_parcelle", "commune", "adresse",
		"servitudes", "gages_immobiliers", "mutations", "updated_at",
	},
}

func hasColumn(table, column string) bool {
	for _, c := range columns[table] {
		if c == column {
			return true
		}
	}
	return false
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func invalid(format string, args ...any) error {
	return &plan.ToolError{Code: plan.CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// buildQueryTable renders a query_table request as parameterized SQL.
func buildQueryTable(req strategy.QueryTableRequest) (string, []any, error) {
	if _, ok := columns[req.Table]; !ok {
		return "", nil, invalid("unknown table %q", req.Table)
	}

	selectList := "*"
	if s := strings.TrimSpace(req.Select); s != "" && s != "*" {
		parts := strings.Split(s, ",")
		quoted := make([]string, 0, len(parts))
		for _, p := range parts {
			col := strings.TrimSpace(p)
			if !hasColumn(req.Table, col) {
				return "", nil, invalid("unknown column %q in %s", col, req.Table)
			}
			quoted = append(quoted, ident(col))
		}
		selectList = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", selectList, ident(req.Table))

	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		args  []any
		where []string
	)
	for _, k := range keys {
		v := req.Filters[k]
		if v == nil {
			continue
		}
		if !hasColumn(req.Table, k) {
			return "", nil, invalid("unknown filter column %q in %s", k, req.Table)
		}
		args = append(args, v)
		op := "="
		if s, ok := v.(string); ok && strings.Contains(s, "%") {
			op = "ILIKE"
		}
		where = append(where, fmt.Sprintf("%s %s $%d", ident(k), op, len(args)))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if ob := strings.Fields(req.OrderBy); len(ob) > 0 {
		if len(ob) > 2 || !hasColumn(req.Table, ob[0]) {
			return "", nil, invalid("invalid order_by %q", req.OrderBy)
		}
		dir := "ASC"
		if len(ob) == 2 {
			switch strings.ToLower(ob[1]) {
			case "asc":
			case "desc":
				dir = "DESC"
			default:
				return "", nil, invalid("invalid order_by %q", req.OrderBy)
			}
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", ident(ob[0]), dir)
	}

	args = append(args, clampLimit(req.Limit))
	fmt.Fprintf(&b, " LIMIT $%d", len(args))
	if req.Offset > 0 {
		args = append(args, req.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	default:
		return n
	}
}

const vacancyExpr = `COALESCE(1 - taux_occupation_unites,
	nb_unites_vacantes::float8 / NULLIF(nb_unites_vacantes + nb_unites_louees, 0))`

// buildVacancyAlerts keeps the latest row per rent roll and returns the
// buildings whose vacancy rate exceeds the threshold, worst first.
func buildVacancyAlerts(req strategy.VacancyAlertsRequest) (string, []any) {
	args := []any{req.Threshold}
	filter := ""
	if req.Commune != "" {
		args = append(args, "%"+req.Commune+"%")
		filter = fmt.Sprintf(" WHERE immeuble_ville ILIKE $%d OR file_name ILIKE $%d", len(args), len(args))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, clampLimit(limit))

	sql := fmt.Sprintf(`SELECT * FROM (
	SELECT DISTINCT ON (file_name)
		file_name, immeuble_nom, immeuble_adresse, immeuble_ville,
		nb_unites_louees, nb_unites_vacantes, taux_occupation_unites, updated_at,
		%s AS taux_vacance
	FROM etats_locatifs%s
	ORDER BY file_name, updated_at DESC
) latest
WHERE taux_vacance > $1
ORDER BY taux_vacance DESC
LIMIT $%d`, vacancyExpr, filter, len(args))
	return sql, args
}

// buildLandRegistry matches extracts by parcel, commune or address.
func buildLandRegistry(req strategy.LandRegistryRequest) (string, []any) {
	var (
		args  []any
		where []string
	)
	if req.ParcelID != "" {
		args = append(args, req.ParcelID)
		where = append(where, fmt.Sprintf("no_parcelle = $%d", len(args)))
	}
	if req.Commune != "" {
		args = append(args, req.Commune)
		where = append(where, fmt.Sprintf("commune ILIKE $%d", len(args)))
	}
	if req.Address != "" {
		args = append(args, "%"+req.Address+"%")
		where = append(where, fmt.Sprintf("(adresse ILIKE $%d OR file_name ILIKE $%d)", len(args), len(args)))
	}

	cols := "id, file_name, no_parcelle, commune, adresse, servitudes, gages_immobiliers, updated_at"
	if req.IncludeHistory {
		cols += ", mutations"
	}
	args = append(args, 50)
	sql := fmt.Sprintf("SELECT %s FROM registres_fonciers WHERE %s ORDER BY updated_at DESC LIMIT $%d",
		cols, strings.Join(where, " AND "), len(args))
	return sql, args
}

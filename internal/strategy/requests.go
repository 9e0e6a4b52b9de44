package strategy

import (
	"errors"
	"fmt"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// ErrInvalidParams is returned when tool params cannot be decoded into a
// typed request.
var ErrInvalidParams = errors.New("invalid tool params")

// Request is a typed tool call. Params is the wire form handed to the tool
// runner.
type Request interface {
	Method() string
	Params() map[string]any
}

// QueryTableRequest reads rows from one table. String filters containing
// "%" match with ILIKE, others with equality.
type QueryTableRequest struct {
	Table   string
	Filters map[string]any
	Select  string
	OrderBy string
	Limit   int
	Offset  int
}

func (r QueryTableRequest) Method() string { return plan.MethodQueryTable }

func (r QueryTableRequest) Params() map[string]any {
	p := map[string]any{"table_name": r.Table}
	if len(r.Filters) > 0 {
		filters := make(map[string]any, len(r.Filters))
		for k, v := range r.Filters {
			filters[k] = v
		}
		p["filters"] = filters
	}
	if r.Select != "" {
		p["select"] = r.Select
	}
	if r.OrderBy != "" {
		p["order_by"] = r.OrderBy
	}
	if r.Limit > 0 {
		p["limit"] = r.Limit
	}
	if r.Offset > 0 {
		p["offset"] = r.Offset
	}
	return p
}

// VacancyAlertsRequest lists buildings whose vacancy rate exceeds Threshold.
type VacancyAlertsRequest struct {
	Threshold float64
	Commune   string
	Limit     int
}

func (r VacancyAlertsRequest) Method() string { return plan.MethodFindVacancyAlerts }

func (r VacancyAlertsRequest) Params() map[string]any {
	p := map[string]any{"seuil_vacance": r.Threshold}
	if r.Commune != "" {
		p["commune"] = r.Commune
	}
	if r.Limit > 0 {
		p["limit"] = r.Limit
	}
	return p
}

// LandRegistryRequest fetches land-registry extracts.
type LandRegistryRequest struct {
	ParcelID       string
	Commune        string
	Address        string
	IncludeHistory bool
}

func (r LandRegistryRequest) Method() string { return plan.MethodGetRegistreFoncier }

func (r LandRegistryRequest) Params() map[string]any {
	p := map[string]any{"include_history": r.IncludeHistory}
	if r.ParcelID != "" {
		p["parcelle_id"] = r.ParcelID
	}
	if r.Commune != "" {
		p["commune"] = r.Commune
	}
	if r.Address != "" {
		p["adresse"] = r.Address
	}
	return p
}

// SemanticSearchRequest searches document passages by meaning.
type SemanticSearchRequest struct {
	Query   string
	K       int
	Filters map[string]string
}

func (r SemanticSearchRequest) Method() string { return plan.MethodSemanticSearch }

func (r SemanticSearchRequest) Params() map[string]any {
	p := map[string]any{"query": r.Query}
	if r.K > 0 {
		p["k"] = r.K
	}
	if len(r.Filters) > 0 {
		filters := make(map[string]any, len(r.Filters))
		for k, v := range r.Filters {
			filters[k] = v
		}
		p["filters"] = filters
	}
	return p
}

// DecodeQueryTable parses query_table params.
func DecodeQueryTable(params map[string]any) (QueryTableRequest, error) {
	table, _ := params["table_name"].(string)
	if table == "" {
		return QueryTableRequest{}, fmt.Errorf("%w: table_name is required", ErrInvalidParams)
	}
	req := QueryTableRequest{Table: table}
	if raw, ok := params["filters"]; ok && raw != nil {
		filters, ok := plan.AsMap(raw)
		if !ok {
			return QueryTableRequest{}, fmt.Errorf("%w: filters must be an object", ErrInvalidParams)
		}
		req.Filters = filters
	}
	req.Select, _ = params["select"].(string)
	req.OrderBy, _ = params["order_by"].(string)
	req.Limit = intParam(params, "limit")
	req.Offset = intParam(params, "offset")
	if req.Limit < 0 || req.Offset < 0 {
		return QueryTableRequest{}, fmt.Errorf("%w: limit and offset must be non-negative", ErrInvalidParams)
	}
	return req, nil
}

// DecodeVacancyAlerts parses find_vacancy_alerts params.
func DecodeVacancyAlerts(params map[string]any) (VacancyAlertsRequest, error) {
	req := VacancyAlertsRequest{Threshold: 0.1}
	if raw, ok := params["seuil_vacance"]; ok {
		f, ok := plan.Float(raw)
		if !ok || f < 0 || f > 1 {
			return VacancyAlertsRequest{}, fmt.Errorf("%w: seuil_vacance must be in [0,1]", ErrInvalidParams)
		}
		req.Threshold = f
	}
	req.Commune, _ = params["commune"].(string)
	req.Limit = intParam(params, "limit")
	return req, nil
}

// DecodeLandRegistry parses get_registre_foncier params.
func DecodeLandRegistry(params map[string]any) (LandRegistryRequest, error) {
	req := LandRegistryRequest{}
	req.ParcelID, _ = params["parcelle_id"].(string)
	req.Commune, _ = params["commune"].(string)
	req.Address, _ = params["adresse"].(string)
	req.IncludeHistory, _ = params["include_history"].(bool)
	if req.ParcelID == "" && req.Commune == "" && req.Address == "" {
		return LandRegistryRequest{}, fmt.Errorf("%w: one of parcelle_id, commune or adresse is required", ErrInvalidParams)
	}
	return req, nil
}

// DecodeSemanticSearch parses semantic_search params.
func DecodeSemanticSearch(params map[string]any) (SemanticSearchRequest, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return SemanticSearchRequest{}, fmt.Errorf("%w: query is required", ErrInvalidParams)
	}
	req := SemanticSearchRequest{Query: query, K: intParam(params, "k")}
	if raw, ok := plan.AsMap(params["filters"]); ok {
		req.Filters = make(map[string]string, len(raw))
		for k, v := range raw {
			req.Filters[k] = fmt.Sprint(v)
		}
	}
	return req, nil
}

func intParam(params map[string]any, key string) int {
	f, ok := plan.Float(params[key])
	if !ok {
		return 0
	}
	return int(f)
}

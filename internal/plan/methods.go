package plan

// Tool method names understood by the tool runner.
const (
	MethodQueryTable         = "query_table"
	MethodFindVacancyAlerts  = "find_vacancy_alerts"
	MethodGetRegistreFoncier = "get_registre_foncier"
	MethodSemanticSearch     = "semantic_search"
)

// Tables exposed through MethodQueryTable.
const (
	TableDocuments         = "documents_full"
	TablePropertyInsights  = "property_insights"
	TableEtatsLocatifs     = "etats_locatifs"
	TableRegistresFonciers = "registres_fonciers"
)

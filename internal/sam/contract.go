package sam

import "fmt"

// Contract pins down one generation of the SAM.gov search API: endpoint
// path, parameter names, the key the result list lives under, and the JSON
// keys of each record field. The vendor has renamed all of these between
// generations, so the pipeline never hardcodes them; a new API generation
// means adding one Contract value here.
type Contract struct {
	Name       string
	BaseURL    string
	ResultsKey string
	Params     ParamNames
	Fields     FieldKeys
}

// ParamNames are the URL query parameter names a generation recognizes.
type ParamNames struct {
	APIKey       string
	Keyword      string
	PostedFrom   string
	PostedTo     string
	DeadlineFrom string
	DeadlineTo   string
	Limit        string
	Offset       string
	Sort         string
	SavedSearch  string
}

// FieldKeys are the JSON keys of a record's fields of interest.
type FieldKeys struct {
	NoticeID         string
	Title            string
	Department       string
	SubTier          string
	Type             string
	PostedDate       string
	ResponseDeadline string
	UILink           string
}

// ContractV2 is the authoritative generation (the current documented API).
var ContractV2 = Contract{
	Name:       "v2",
	BaseURL:    "https://api.sam.gov/prod/opportunities/v2/search",
	ResultsKey: "opportunitiesData",
	Params: ParamNames{
		APIKey:       "api_key",
		Keyword:      "q",
		PostedFrom:   "postedFrom",
		PostedTo:     "postedTo",
		DeadlineFrom: "responseDeadLineFrom",
		DeadlineTo:   "responseDeadLineTo",
		Limit:        "limit",
		Offset:       "offset",
		Sort:         "sort",
		SavedSearch:  "savedSearchId",
	},
	Fields: FieldKeys{
		NoticeID:         "noticeId",
		Title:            "title",
		Department:       "department",
		SubTier:          "subTier",
		Type:             "type",
		PostedDate:       "postedDate",
		ResponseDeadline: "responseDeadLine",
		UILink:           "uiLink",
	},
}

// ContractV1 is the legacy generation, kept selectable because saved
// searches created against it still resolve there.
var ContractV1 = Contract{
	Name:       "v1",
	BaseURL:    "https://api.sam.gov/prod/opportunities/v1/search",
	ResultsKey: "opportunities",
	Params: ParamNames{
		APIKey:       "api_key",
		Keyword:      "title",
		PostedFrom:   "postedFrom",
		PostedTo:     "postedTo",
		DeadlineFrom: "rdlfrom",
		DeadlineTo:   "rdlto",
		Limit:        "limit",
		Offset:       "offset",
		Sort:         "sort",
		SavedSearch:  "savedSearchId",
	},
	Fields: FieldKeys{
		NoticeID:         "NoticeId",
		Title:            "Title",
		Department:       "Department",
		SubTier:          "SubTier",
		Type:             "Type",
		PostedDate:       "PostedDate",
		ResponseDeadline: "ResponseDeadLine",
		UILink:           "uiLink",
	},
}

// ContractFor resolves a configured version name.
func ContractFor(version string) (Contract, error) {
	switch version {
	case "v2", "":
		return ContractV2, nil
	case "v1":
		return ContractV1, nil
	default:
		return Contract{}, fmt.Errorf("unknown API version %q", version)
	}
}

package domain

import "fmt"

// SearchField selects which product attribute a keyword is matched against
type SearchField string

const (
	// FieldCategory matches the product line
	FieldCategory SearchField = "category"
	// FieldName matches product names containing the keyword
	FieldName SearchField = "name"
	// FieldExactName matches product names equal to the keyword
	FieldExactName SearchField = "ename"
)

// ParseSearchField validates a raw field path segment
func ParseSearchField(s string) (SearchField, error) {
	switch SearchField(s) {
	case FieldCategory, FieldName, FieldExactName:
		return SearchField(s), nil
	}
	return "", fmt.Errorf("%w: unknown search field %q", ErrInvalidRequest, s)
}

// Result sources
const (
	SourceExport = "export"
	SourceCache  = "cache"
)

// SearchRequest represents one export request
type SearchRequest struct {
	Field   SearchField
	Keyword string
	Quick   bool
}

// SearchResult is the response of a full export
type SearchResult struct {
	Keyword   string    `json:"keyword"`
	Source    string    `json:"source"`
	Products  []Product `json:"products"`
	Companies []Company `json:"companies"`
}

// QuickResult is the response of a quick lookup: the matched GTINs only
type QuickResult struct {
	Keyword     string   `json:"keyword"`
	Source      string   `json:"source"`
	Identifiers []string `json:"identifiers"`
}

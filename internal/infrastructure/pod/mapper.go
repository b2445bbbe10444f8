package pod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/podexport/backend/internal/domain"
)

// flexFloat decodes a JSON number or a numeric string. Null and empty
// strings decode to an absent value.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		f.value = nil
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			f.value = nil
			return nil
		}
	} else {
		raw = string(data)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %s", data)
	}
	f.value = &v
	return nil
}

type nutritionRow struct {
	Calories flexFloat `json:"n.CAL"`
	Carbs    flexFloat `json:"n.TOT_CARB_G"`
	Protein  flexFloat `json:"n.PROTEIN_G"`
	Fat      flexFloat `json:"n.TOT_FAT_G"`
}

type detailsRow struct {
	Category string `json:"g.PRODUCT_LINE"`
	BSIN     string `json:"g.BSIN"`
	Name     string `json:"g.GTIN_NM"`
}

type brandRow struct {
	Name    string `json:"g.BRAND_NM"`
	Website string `json:"g.BRAND_LINK"`
}

// MapIdentifier decodes one record of an identifier query. GTINs are
// normally strings, numeric records are accepted as well.
func MapIdentifier(record json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(record, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(record, &n); err != nil {
		return "", fmt.Errorf("%w: identifier %s", domain.ErrParseFailure, record)
	}
	return n.String(), nil
}

// MapToNutrition converts a nutrition record to the domain model
func MapToNutrition(record json.RawMessage) (*domain.Nutrition, error) {
	var row nutritionRow
	if err := json.Unmarshal(record, &row); err != nil {
		return nil, fmt.Errorf("%w: nutrition record: %v", domain.ErrParseFailure, err)
	}
	return &domain.Nutrition{
		Calories: row.Calories.value,
		Carbs:    row.Carbs.value,
		Protein:  row.Protein.value,
		Fat:      row.Fat.value,
	}, nil
}

// MapToDetails converts a product metadata record to the domain model
func MapToDetails(record json.RawMessage) (*domain.ProductDetails, error) {
	var row detailsRow
	if err := json.Unmarshal(record, &row); err != nil {
		return nil, fmt.Errorf("%w: details record: %v", domain.ErrParseFailure, err)
	}
	return &domain.ProductDetails{
		Category: row.Category,
		BSIN:     row.BSIN,
		Name:     row.Name,
	}, nil
}

// MapToBrand converts a brand record to the domain model
func MapToBrand(record json.RawMessage) (*domain.Brand, error) {
	var row brandRow
	if err := json.Unmarshal(record, &row); err != nil {
		return nil, fmt.Errorf("%w: brand record: %v", domain.ErrParseFailure, err)
	}
	return &domain.Brand{
		Name:    row.Name,
		Website: row.Website,
	}, nil
}

package domain

// Product is one exported POD product. Optional fields are omitted from the
// export when no enrichment stage supplied them.
type Product struct {
	GTIN     string   `json:"gtin"`
	Picture  string   `json:"picture,omitempty"`
	Calories *float64 `json:"calories,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Category string   `json:"category,omitempty"`
	BSIN     string   `json:"bsin,omitempty"`
	Name     string   `json:"name,omitempty"`
}

// Company holds brand metadata keyed by BSIN
type Company struct {
	BSIN    string `json:"bsin"`
	Name    string `json:"name,omitempty"`
	Website string `json:"website,omitempty"`
}

// Nutrition is the result of a nutrition lookup for one GTIN
type Nutrition struct {
	Calories *float64
	Carbs    *float64
	Protein  *float64
	Fat      *float64
}

// ProductDetails is the result of a name/category/brand lookup for one GTIN
type ProductDetails struct {
	Category string
	BSIN     string
	Name     string
}

// Brand is the result of a brand metadata lookup for one BSIN
type Brand struct {
	Name    string
	Website string
}

// Bundle is the pair of collections produced by one export run
type Bundle struct {
	Products  []Product
	Companies []Company
}

// WithNutrition returns a copy of p carrying the given nutrition values
func (p Product) WithNutrition(n Nutrition) Product {
	p.Calories = n.Calories
	p.Carbs = n.Carbs
	p.Protein = n.Protein
	p.Fat = n.Fat
	return p
}

// WithDetails returns a copy of p carrying the given name, category and brand id
func (p Product) WithDetails(d ProductDetails) Product {
	p.Category = d.Category
	p.BSIN = d.BSIN
	p.Name = d.Name
	return p
}

// Identifiers returns the GTINs of the given products in order
func Identifiers(products []Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.GTIN)
	}
	return ids
}

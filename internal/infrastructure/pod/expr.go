package pod

import (
	"fmt"
	"strings"

	"github.com/podexport/backend/internal/domain"
)

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote renders s as a string literal of the query language
func quote(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}

// productIDsExpr selects GTINs of products that carry a brand and whose
// category or name matches keyword
func productIDsExpr(field domain.SearchField, keyword string) (string, error) {
	switch field {
	case domain.FieldCategory:
		return fmt.Sprintf(`[ g.GTIN_CD | g <~ pod.gtin, lower(g.PRODUCT_LINE) =~ %s && g.BSIN ]`, quote(keyword)), nil
	case domain.FieldName:
		return fmt.Sprintf(`[ g.GTIN_CD | g <~ pod.gtin, lower(g.GTIN_NM) =~ %s && g.BSIN ]`, quote(keyword)), nil
	case domain.FieldExactName:
		return fmt.Sprintf(`[ g.GTIN_CD | g <~ pod.gtin, lower(g.GTIN_NM) == %s && g.BSIN ]`, quote(keyword)), nil
	}
	return "", fmt.Errorf("%w: unknown search field %q", domain.ErrInvalidRequest, field)
}

func nutritionExpr(gtin string) string {
	return fmt.Sprintf(`[ {n.CAL, n.TOT_CARB_G, n.PROTEIN_G, n.TOT_FAT_G} | n <~ pod.nutrition_us, n.GTIN_CD =~ %s ]`, quote(gtin))
}

func detailsExpr(gtin string) string {
	return fmt.Sprintf(`[ {g.PRODUCT_LINE, g.BSIN, g.GTIN_NM} | g <~ pod.gtin, g.GTIN_CD =~ %s ]`, quote(gtin))
}

func brandExpr(bsin string) string {
	return fmt.Sprintf(`[ {g.BRAND_NM, g.BRAND_LINK} | g <~ pod.brand, g.BSIN =~ %s ]`, quote(bsin))
}

package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/podexport/backend/internal/domain"
)

// maxKeywordLength bounds keywords, which end up in file names
const maxKeywordLength = 128

var multiSpacePattern = regexp.MustCompile(`\s+`)

// NormalizeKeyword prepares a raw search keyword for use in queries and as
// the export file name. Keywords are matched against lower-cased product
// attributes, so the result is lower case with single spaces.
func NormalizeKeyword(raw string) (string, error) {
	keyword := strings.ToLower(strings.TrimSpace(raw))
	keyword = multiSpacePattern.ReplaceAllString(keyword, " ")

	if keyword == "" {
		return "", fmt.Errorf("%w: keyword is empty", domain.ErrInvalidRequest)
	}
	if len(keyword) > maxKeywordLength {
		return "", fmt.Errorf("%w: keyword longer than %d bytes", domain.ErrInvalidRequest, maxKeywordLength)
	}
	if strings.ContainsAny(keyword, `/\`) || strings.Contains(keyword, "..") {
		return "", fmt.Errorf("%w: keyword %q contains path characters", domain.ErrInvalidRequest, keyword)
	}
	for _, r := range keyword {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: keyword contains control characters", domain.ErrInvalidRequest)
		}
	}

	return keyword, nil
}

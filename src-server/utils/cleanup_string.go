package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// strips spaces, uppercase first letter of each word, remove trailing period
func CleanupString(s string) string {
	s = strings.TrimSpace(s)
	s = cases.Title(language.English, cases.NoLower).String(s)
	s = strings.TrimSuffix(s, ".")
	return s
}

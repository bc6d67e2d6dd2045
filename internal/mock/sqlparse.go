package mock

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	wsRe     = regexp.MustCompile(`\s+`)
	fromRe   = regexp.MustCompile(`from\s+([a-z_][a-z0-9_.]*)`)
	insertRe = regexp.MustCompile(`insert\s+into\s+([a-z_][a-z0-9_.]*)`)
	updateRe = regexp.MustCompile(`update\s+([a-z_][a-z0-9_.]*)`)
	selectRe = regexp.MustCompile(`select\s+(.+?)\s+from`)
	limitRe  = regexp.MustCompile(`limit\s+(\d+)`)
	asRe     = regexp.MustCompile(`\s+as\s+`)
)

func normalizeSQL(sql string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(strings.ToLower(sql), " "))
}

// ExtractTable pulls the first referenced table out of a FROM, INSERT INTO or
// UPDATE clause. Returns "" when no table can be found.
func ExtractTable(sql string) string {
	norm := normalizeSQL(sql)
	for _, re := range []*regexp.Regexp{fromRe, insertRe, updateRe} {
		if m := re.FindStringSubmatch(norm); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractColumns returns the projected column names of a SELECT, with aliases
// resolved to their final name. A nil result means all columns (SELECT * or
// not a SELECT at all).
func ExtractColumns(sql string) []string {
	norm := normalizeSQL(sql)
	m := selectRe.FindStringSubmatch(norm)
	if m == nil {
		return nil
	}
	clause := strings.TrimSpace(m[1])
	if clause == "*" {
		return nil
	}
	parts := strings.Split(clause, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		aliased := asRe.Split(strings.TrimSpace(p), -1)
		cols = append(cols, strings.TrimSpace(aliased[len(aliased)-1]))
	}
	return cols
}

// ExtractLimit returns the LIMIT value, or -1 when the query has none.
func ExtractLimit(sql string) int {
	m := limitRe.FindStringSubmatch(normalizeSQL(sql))
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

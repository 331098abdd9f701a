package albums

import (
	"net/url"
	"sort"
	"strings"
)

// Predicate is one backend-agnostic comparison: a SQL field path, an
// operator name, and the raw client value. The operator is whatever
// the token carried; the storage adapter owns the vocabulary.
type Predicate struct {
	Field string
	Op    string
	Value string
}

// SortKey is one ordering clause; earlier keys take precedence.
type SortKey struct {
	Field string
	Desc  bool
}

// QueryPlan is what the query translator hands the storage adapter:
// inclusion predicates, exclusion predicates, and ordered sort keys.
// Pagination is planned separately (see PlanPage).
type QueryPlan struct {
	Filters  []Predicate
	Excludes []Predicate
	Sort     []SortKey
}

// featureFields maps public feature names to SQL field paths ("a" is
// the albums table, "c" the joined itunes_categories table). Order
// matters: it is the prefix-match order for token translation.
var featureFields = []struct {
	feature string
	field   string
}{
	{"artist", "a.artist"},
	{"category", "c.term"},
	{"is_itunes_top", "a.is_itunes_top"},
	{"name", "a.name"},
	{"price", "a.itunes_price_cents"},
	{"release_date", "a.release_date"},
}

// Translate maps client query parameters to a QueryPlan.
//
// Filter tokens follow <feature>[__<op>][__not]: the feature prefix is
// lexically replaced with its field path, __not routes the predicate
// to the exclusion list, and any remaining __<op> suffix is forwarded
// untouched (equality when absent). Tokens that do not start with a
// known feature name are silently ignored so pagination and sort
// controls can share the parameter namespace.
//
// The sort parameter is a comma list of feature names, "-" prefix for
// descending; input order is tie-break precedence.
func Translate(params url.Values, sortParam string) QueryPlan {
	var plan QueryPlan

	if sortParam != "" {
		plan.Sort = parseSort(sortParam)
	}

	tokens := make([]string, 0, len(params))
	for token := range params {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	for _, token := range tokens {
		field, rest, ok := mapFeature(token)
		if !ok {
			continue
		}

		negate := false
		if strings.Contains(rest, "__not") {
			negate = true
			rest = strings.Replace(rest, "__not", "", 1)
		}

		op := strings.TrimPrefix(rest, "__")
		if op == "" {
			op = "eq"
		}

		p := Predicate{Field: field, Op: op, Value: params.Get(token)}
		if negate {
			plan.Excludes = append(plan.Excludes, p)
		} else {
			plan.Filters = append(plan.Filters, p)
		}
	}

	return plan
}

// mapFeature splits a token into its translated field path and the
// untouched operator suffix. A feature name must match exactly or be
// followed by "__" so e.g. "names" does not translate as "name".
func mapFeature(token string) (field, rest string, ok bool) {
	for _, f := range featureFields {
		if token == f.feature {
			return f.field, "", true
		}
		if strings.HasPrefix(token, f.feature+"__") {
			return f.field, token[len(f.feature):], true
		}
	}
	return "", "", false
}

func parseSort(s string) []SortKey {
	var keys []SortKey
	for _, clause := range strings.Split(s, ",") {
		clause = strings.TrimSpace(clause)
		desc := strings.HasPrefix(clause, "-")
		clause = strings.TrimPrefix(clause, "-")

		field, rest, ok := mapFeature(clause)
		if !ok || rest != "" {
			continue
		}
		keys = append(keys, SortKey{Field: field, Desc: desc})
	}
	return keys
}

// topOnly is the baseline predicate restricting reads to the current
// feed snapshot, expressed through the same feature table as client
// filters.
func topOnly() Predicate {
	field, _, _ := mapFeature("is_itunes_top")
	return Predicate{Field: field, Op: "eq", Value: "true"}
}

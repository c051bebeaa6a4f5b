package schema

import (
	"sort"
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

var pluralizeClient = pluralizer.NewClient()

// NamingStrategy maps Go identifiers to database identifiers.
type NamingStrategy interface {
	// ColumnName converts a struct field name to a column name.
	ColumnName(fieldName string) string
	// TableName converts a struct type name to a table name.
	TableName(typeName string) string
}

// SnakeCaseStrategy produces snake_case columns and snake_case tables,
// pluralized unless Singular is set.
type SnakeCaseStrategy struct {
	Singular bool
}

func (s SnakeCaseStrategy) ColumnName(fieldName string) string {
	return toSnakeCase(fieldName)
}

func (s SnakeCaseStrategy) TableName(typeName string) string {
	snake := toSnakeCase(typeName)
	if s.Singular {
		return snake
	}
	return pluralize(snake)
}

// DefaultNamingStrategy returns snake_case columns with plural tables.
func DefaultNamingStrategy() NamingStrategy {
	return SnakeCaseStrategy{}
}

// toSnakeCase converts Go identifiers to snake_case. Acronym runs stay
// together: UserID -> user_id, HTTPServer -> http_server.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}
	if strings.Contains(name, "_") && strings.ToLower(name) == name {
		return name
	}

	runes := []rune(name)
	var sb strings.Builder
	sb.Grow(len(name) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// pluralize pluralizes the last word of a snake_case name.
func pluralize(name string) string {
	if name == "" {
		return ""
	}
	idx := strings.LastIndexByte(name, '_')
	return name[:idx+1] + pluralizeClient.Plural(name[idx+1:])
}

// PivotName derives a many-to-many pivot table name from the two record type
// names: snake_case, sorted alphabetically, joined by an underscore. The
// result does not depend on which side declares the relation.
func PivotName(a, b string) string {
	names := []string{toSnakeCase(a), toSnakeCase(b)}
	sort.Strings(names)
	return names[0] + "_" + names[1]
}

// ForeignKeyName is the conventional key column for a record type:
// <type>_<primary key>, snake_cased.
func ForeignKeyName(typeName, primaryKey string) string {
	return toSnakeCase(typeName) + "_" + primaryKey
}

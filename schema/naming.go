package schema

import (
	"fmt"
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// pluralizeClient is shared; the client is read-only after construction.
var pluralizeClient = pluralizer.NewClient()

// NamingStrategy derives default table and column names when no tag or
// fluent override is present.
type NamingStrategy interface {
	// ColumnName converts a Go field name to a column name.
	ColumnName(fieldName string) string
	// TableName converts a Go type name to a table name.
	TableName(typeName string) string
}

// ColumnNamingType represents the column naming conventions.
type ColumnNamingType int

const (
	ColumnVerbatim  ColumnNamingType = iota // EmployeeId
	ColumnSnakeCase                         // employee_id
)

// TableNamingType represents the table naming conventions.
type TableNamingType int

const (
	TableVerbatim        TableNamingType = iota // Employee
	TablePlural                                 // Employees
	TableSnakeCasePlural                        // employees, blog_posts
)

type namingStrategy struct {
	columns ColumnNamingType
	tables  TableNamingType
}

// NewNamingStrategy combines a column and a table convention.
func NewNamingStrategy(columns ColumnNamingType, tables TableNamingType) NamingStrategy {
	return &namingStrategy{columns: columns, tables: tables}
}

// DefaultNamingStrategy uses field and type names as they are.
func DefaultNamingStrategy() NamingStrategy {
	return NewNamingStrategy(ColumnVerbatim, TableVerbatim)
}

// NamingStrategyByName resolves the strategy names used in configuration:
// verbatim, plural, snake_case and snake_case_plural.
func NamingStrategyByName(name string) (NamingStrategy, error) {
	switch name {
	case "", "verbatim":
		return DefaultNamingStrategy(), nil
	case "plural":
		return NewNamingStrategy(ColumnVerbatim, TablePlural), nil
	case "snake_case":
		return NewNamingStrategy(ColumnSnakeCase, TableVerbatim), nil
	case "snake_case_plural":
		return NewNamingStrategy(ColumnSnakeCase, TableSnakeCasePlural), nil
	default:
		return nil, fmt.Errorf("unknown naming strategy: %s", name)
	}
}

func (n *namingStrategy) ColumnName(fieldName string) string {
	switch n.columns {
	case ColumnSnakeCase:
		return toSnakeCase(fieldName)
	default:
		return fieldName
	}
}

func (n *namingStrategy) TableName(typeName string) string {
	switch n.tables {
	case TablePlural:
		return pluralize(typeName)
	case TableSnakeCasePlural:
		return toSnakeCase(pluralize(typeName))
	default:
		return typeName
	}
}

// toSnakeCase converts PascalCase or camelCase to snake_case, keeping
// acronyms together: HTTPServer -> http_server.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(name) + 8)

	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteByte('_')
			} else if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
				result.WriteByte('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}

	return result.String()
}

// pluralize pluralizes the last word of a PascalCase name: BlogPost -> BlogPosts.
func pluralize(name string) string {
	if name == "" {
		return ""
	}

	start := 0
	runes := []rune(name)
	for i := len(runes) - 1; i > 0; i-- {
		if unicode.IsUpper(runes[i]) && unicode.IsLower(runes[i-1]) {
			start = i
			break
		}
	}

	head, word := string(runes[:start]), string(runes[start:])
	plural := pluralizeClient.Plural(strings.ToLower(word))
	if plural == "" {
		return name
	}

	switch {
	case word == strings.ToUpper(word) && len(word) > 1:
		plural = strings.ToUpper(plural)
	case unicode.IsUpper([]rune(word)[0]):
		pr := []rune(plural)
		pr[0] = unicode.ToUpper(pr[0])
		plural = string(pr)
	}

	return head + plural
}

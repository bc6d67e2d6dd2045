package sqltool

import (
	"context"
	"fmt"
	"strings"

	"github.com/ai-tel/mcp-gateway/internal/mock"
)

// SyntaxError is one blocking validation finding.
type SyntaxError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// SyntaxWarning is a non-blocking finding with an optional suggestion.
type SyntaxWarning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationResult is the validate_syntax payload.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Errors   []SyntaxError   `json:"errors"`
	Warnings []SyntaxWarning `json:"warnings"`
}

var statementTypes = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER"}

// ValidateSyntax runs heuristic checks over a query without executing it.
// Findings are split into blocking errors and advisory warnings.
func (s *Service) ValidateSyntax(ctx context.Context, args map[string]any) (any, error) {
	sql, _ := args["sql"].(string)

	if err := s.metadataDelay.Sleep(ctx); err != nil {
		return nil, err
	}

	errs := []SyntaxError{}
	warns := []SyntaxWarning{}
	norm := strings.ToUpper(strings.TrimSpace(sql))

	if norm == "" {
		errs = append(errs, SyntaxError{Code: codeSyntaxError, Message: "SQL query is empty"})
		return ValidationResult{Valid: false, Errors: errs, Warnings: warns}, nil
	}

	firstWord := strings.Fields(norm)[0]
	known := false
	for _, st := range statementTypes {
		if firstWord == st {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, SyntaxError{
			Code:    codeSyntaxError,
			Message: fmt.Sprintf("unknown statement type: %s. Expected one of: %s", firstWord, strings.Join(statementTypes, ", ")),
			Line:    1,
			Column:  1,
		})
	}

	open := strings.Count(sql, "(")
	closed := strings.Count(sql, ")")
	if open != closed {
		errs = append(errs, SyntaxError{
			Code:    codeSyntaxError,
			Message: fmt.Sprintf("unbalanced parentheses: %d opening, %d closing", open, closed),
		})
	}
	if strings.Count(sql, "'")%2 != 0 {
		errs = append(errs, SyntaxError{Code: codeSyntaxError, Message: "unbalanced single quotes"})
	}
	if strings.Count(sql, `"`)%2 != 0 {
		errs = append(errs, SyntaxError{Code: codeSyntaxError, Message: "unbalanced double quotes"})
	}

	if firstWord == "SELECT" {
		if !strings.Contains(norm, "FROM") {
			errs = append(errs, SyntaxError{Code: codeSyntaxError, Message: "SELECT statement missing FROM clause"})
		}
		if tableName := mock.ExtractTable(sql); tableName != "" {
			if mock.LookupTable(tableName) == nil {
				warns = append(warns, SyntaxWarning{
					Code:       "W001",
					Message:    fmt.Sprintf("table '%s' not found in schema registry", tableName),
					Suggestion: "Available tables: " + strings.Join(mock.TableNames(), ", "),
				})
			}
		}
	}

	if strings.Contains(norm, "SELECT *") {
		warns = append(warns, SyntaxWarning{
			Code:       "W002",
			Message:    "Using SELECT * is not recommended",
			Suggestion: "Specify explicit column names for better performance and clarity",
		})
	}
	if firstWord == "SELECT" && !strings.Contains(norm, "LIMIT") {
		warns = append(warns, SyntaxWarning{
			Code:       "W003",
			Message:    "SELECT without LIMIT clause",
			Suggestion: "Consider adding LIMIT to prevent returning too many rows",
		})
	}
	for _, pattern := range []string{"--", ";--", "/*", "*/", "DROP TABLE", "DROP DATABASE"} {
		if strings.Contains(norm, pattern) {
			warns = append(warns, SyntaxWarning{
				Code:       "W004",
				Message:    "Potentially dangerous pattern detected: " + pattern,
				Suggestion: "Review query for SQL injection risks",
			})
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}, nil
}

// Package sqltool exposes the mock SQL subsystem: query execution against the
// fabricated IPTV warehouse and lightweight syntax validation.
package sqltool

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/ai-tel/mcp-gateway/internal/mock"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// Subsystem is the logical server name tools in this package register under.
const Subsystem = "sql-validator"

const (
	codeSyntaxError   = "SYNTAX_ERROR"
	codeTableNotFound = "TABLE_NOT_FOUND"
)

// maxRows caps result sets regardless of mode or requested limit.
const maxRows = 1000

// Service holds the latency configuration shared by the SQL tools.
type Service struct {
	queryDelay    mock.Delay
	metadataDelay mock.Delay
}

// NewService builds the SQL subsystem. latencyScale 0 disables simulated
// latency, 1 uses the standard bands.
func NewService(latencyScale float64) *Service {
	return &Service{
		queryDelay:    mock.QueryDelay.Scale(latencyScale),
		metadataDelay: mock.MetadataDelay.Scale(latencyScale),
	}
}

// Register installs execute_sql and validate_syntax into reg.
func (s *Service) Register(reg *tool.Registry) error {
	if err := reg.Register(executeSQLDescriptor, s.ExecuteSQL); err != nil {
		return err
	}
	return reg.Register(validateSyntaxDescriptor, s.ValidateSyntax)
}

var executeSQLDescriptor = tool.Descriptor{
	Name:      "execute_sql",
	Subsystem: Subsystem,
	Description: `Execute SQL query against mock database. Modes: "plan" shows execution plan only, ` +
		`"limit" returns limited results (default), "full" returns all results.`,
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "SQL query to execute",
			},
			"mode": map[string]any{
				"type":        "string",
				"enum":        []string{"plan", "limit", "full"},
				"description": "Execution mode: plan (no data), limit (default, limited rows), full (all rows)",
				"default":     "limit",
			},
			"limit": map[string]any{
				"type":        "number",
				"description": "Maximum number of rows to return in limit mode",
				"default":     100,
			},
		},
		"required": []string{"sql"},
	},
}

var validateSyntaxDescriptor = tool.Descriptor{
	Name:        "validate_syntax",
	Subsystem:   Subsystem,
	Description: "Validate SQL syntax without executing the query. Returns errors and warnings.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "SQL query to validate",
			},
		},
		"required": []string{"sql"},
	},
}

// ExecutionResult is the execute_sql payload.
type ExecutionResult struct {
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"rowCount"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	Mode            string           `json:"mode"`
}

// ExecuteSQL fabricates a result set for the referenced mock table.
func (s *Service) ExecuteSQL(ctx context.Context, args map[string]any) (any, error) {
	start := time.Now()
	sql, _ := args["sql"].(string)
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "limit"
	}

	if err := s.queryDelay.Sleep(ctx); err != nil {
		return nil, err
	}

	tableName := mock.ExtractTable(sql)
	if tableName == "" {
		return nil, tool.Errorf(codeSyntaxError, "could not extract table name from SQL query")
	}
	table := mock.LookupTable(tableName)
	if table == nil {
		return nil, tool.Errorf(codeTableNotFound, "table '%s' not found. Available tables: %s",
			tableName, strings.Join(mock.TableNames(), ", "))
	}

	if mode == "plan" {
		return ExecutionResult{
			Columns:         table.ColumnNames(),
			Rows:            []map[string]any{},
			RowCount:        0,
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			Mode:            "plan",
		}, nil
	}

	sqlLimit := mock.ExtractLimit(sql)
	rowCount := 0
	switch {
	case sqlLimit >= 0:
		rowCount = sqlLimit
	case mode == "limit":
		rowCount = 10
		if lim, ok := args["limit"].(float64); ok {
			rowCount = int(lim)
		}
	default:
		// full mode simulates an unbounded scan
		rowCount = 50 + rand.Intn(50)
	}
	if rowCount > maxRows {
		rowCount = maxRows
	}
	if rowCount < 0 {
		rowCount = 0
	}

	allRows := table.Rows(rowCount)
	columns := mock.ExtractColumns(sql)
	if columns == nil {
		return ExecutionResult{
			Columns:         table.ColumnNames(),
			Rows:            allRows,
			RowCount:        len(allRows),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			Mode:            mode,
		}, nil
	}

	filtered := make([]map[string]any, 0, len(allRows))
	for _, row := range allRows {
		out := make(map[string]any, len(columns))
		for _, col := range columns {
			for _, actual := range table.Columns {
				if strings.EqualFold(actual.Name, col) {
					out[col] = row[actual.Name]
					break
				}
			}
		}
		filtered = append(filtered, out)
	}
	return ExecutionResult{
		Columns:         columns,
		Rows:            filtered,
		RowCount:        len(filtered),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Mode:            mode,
	}, nil
}

package dag

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ai-tel/mcp-gateway/internal/mock"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// Subsystem is the logical server name tools in this package register under.
const Subsystem = "airflow"

// Service exposes the DAG registry as gateway tools.
type Service struct {
	store         *Store
	metadataDelay mock.Delay
	fileDelay     mock.Delay
}

// NewService builds the DAG subsystem around store. latencyScale 0 disables
// simulated latency.
func NewService(store *Store, latencyScale float64) *Service {
	return &Service{
		store:         store,
		metadataDelay: mock.MetadataDelay.Scale(latencyScale),
		fileDelay:     mock.FileDelay.Scale(latencyScale),
	}
}

// Register installs generate_dag, validate_dag, register_dag, list_dags and
// get_dag_status into reg.
func (s *Service) Register(reg *tool.Registry) error {
	regs := []struct {
		desc tool.Descriptor
		h    tool.Handler
	}{
		{generateDagDescriptor, s.GenerateDag},
		{validateDagDescriptor, s.ValidateDag},
		{registerDagDescriptor, s.RegisterDag},
		{listDagsDescriptor, s.ListDags},
		{getDagStatusDescriptor, s.GetDagStatus},
	}
	for _, r := range regs {
		if err := reg.Register(r.desc, r.h); err != nil {
			return err
		}
	}
	return nil
}

var generateDagDescriptor = tool.Descriptor{
	Name:        "generate_dag",
	Subsystem:   Subsystem,
	Description: "Generate Airflow DAG Python code from a configuration. Returns the generated code without registering it.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dagId": map[string]any{
				"type":        "string",
				"description": "Unique DAG identifier (lowercase, underscores allowed)",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Human-readable DAG description",
			},
			"schedule": map[string]any{
				"type":        "string",
				"description": `Cron expression or preset (e.g., "@daily", "0 0 * * *")`,
			},
			"startDate": map[string]any{
				"type":        "string",
				"description": `Start date in ISO format (e.g., "2024-01-01")`,
			},
			"catchup": map[string]any{
				"type":        "boolean",
				"description": "Whether to run backfill for missed intervals",
				"default":     false,
			},
			"tags": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Tags for categorizing the DAG",
			},
			"tasks": map[string]any{
				"type":        "array",
				"description": "List of task definitions",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"taskId":   map[string]any{"type": "string", "description": "Unique task identifier"},
						"operator": map[string]any{"type": "string", "description": "Airflow operator class name"},
						"params":   map[string]any{"type": "object", "description": "Operator parameters"},
						"dependencies": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Task IDs this task depends on",
						},
					},
					"required": []string{"taskId", "operator", "params"},
				},
			},
			"defaultArgs": map[string]any{
				"type":        "object",
				"description": "Default arguments for all tasks",
			},
		},
		"required": []string{"dagId", "schedule", "startDate", "tasks"},
	},
}

var validateDagDescriptor = tool.Descriptor{
	Name:        "validate_dag",
	Subsystem:   Subsystem,
	Description: "Validate DAG code for common issues, missing requirements, and best practices.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The DAG Python code to validate",
			},
		},
		"required": []string{"code"},
	},
}

var registerDagDescriptor = tool.Descriptor{
	Name:        "register_dag",
	Subsystem:   Subsystem,
	Description: "Validate and save a DAG to the registry. Validates code before saving.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dagId": map[string]any{
				"type":        "string",
				"description": "Unique DAG identifier",
			},
			"code": map[string]any{
				"type":        "string",
				"description": "The DAG Python code to register",
			},
			"overwrite": map[string]any{
				"type":        "boolean",
				"description": "Whether to overwrite existing DAG",
				"default":     false,
			},
		},
		"required": []string{"dagId", "code"},
	},
}

var listDagsDescriptor = tool.Descriptor{
	Name:        "list_dags",
	Subsystem:   Subsystem,
	Description: "List registered DAGs with their metadata and status. Supports glob patterns on the DAG id.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": `Glob pattern to filter DAG ids (e.g., "iptv_*")`,
			},
			"limit": map[string]any{
				"type":        "number",
				"description": "Maximum number of DAGs to return",
				"default":     50,
			},
		},
		"required": []string{},
	},
}

var getDagStatusDescriptor = tool.Descriptor{
	Name:        "get_dag_status",
	Subsystem:   Subsystem,
	Description: "Get detailed status of a DAG including recent run history and next scheduled run.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dagId": map[string]any{
				"type":        "string",
				"description": "The DAG ID to get status for",
			},
		},
		"required": []string{"dagId"},
	},
}

// GenerateResult is the generate_dag payload.
type GenerateResult struct {
	DagID     string `json:"dagId"`
	Code      string `json:"code"`
	TaskCount int    `json:"taskCount"`
}

// GenerateDag renders DAG code from a task configuration.
func (s *Service) GenerateDag(ctx context.Context, args map[string]any) (any, error) {
	if err := s.metadataDelay.Sleep(ctx); err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(args)
	if err != nil {
		return nil, err
	}
	return GenerateResult{
		DagID:     cfg.DagID,
		Code:      Generate(cfg),
		TaskCount: len(cfg.Tasks),
	}, nil
}

// ValidateDag runs the heuristic validator over submitted code.
func (s *Service) ValidateDag(ctx context.Context, args map[string]any) (any, error) {
	if err := s.metadataDelay.Sleep(ctx); err != nil {
		return nil, err
	}
	code, _ := args["code"].(string)
	return Validate(code), nil
}

// RegistrationResult is the register_dag payload.
type RegistrationResult struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	DagInfo  Info     `json:"dagInfo"`
	Warnings []string `json:"warnings"`
}

// RegisterDag validates and persists DAG code. Validation errors block the
// save; warnings are passed along with the result.
func (s *Service) RegisterDag(ctx context.Context, args map[string]any) (any, error) {
	if err := s.fileDelay.Sleep(ctx); err != nil {
		return nil, err
	}
	dagID, _ := args["dagId"].(string)
	code, _ := args["code"].(string)
	overwrite, _ := args["overwrite"].(bool)

	result := Validate(code)
	if !result.Valid {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, tool.Errorf(codeDagInvalid, "DAG validation failed: %s", strings.Join(msgs, "; "))
	}

	info, err := s.store.Save(dagID, code, overwrite)
	if err != nil {
		return nil, err
	}

	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, w.Message)
	}
	return RegistrationResult{
		Success:  true,
		Message:  "DAG '" + dagID + "' registered successfully at " + info.FilePath,
		DagInfo:  info,
		Warnings: warnings,
	}, nil
}

// ListResult is the list_dags payload.
type ListResult struct {
	Dags  []Info `json:"dags"`
	Total int    `json:"total"`
}

// ListDags enumerates registered DAGs, optionally filtered by an id glob.
func (s *Service) ListDags(ctx context.Context, args map[string]any) (any, error) {
	if err := s.metadataDelay.Sleep(ctx); err != nil {
		return nil, err
	}
	pattern, _ := args["pattern"].(string)
	limit := 0
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}
	dags, err := s.store.List(pattern, limit)
	if err != nil {
		return nil, err
	}
	return ListResult{Dags: dags, Total: len(dags)}, nil
}

// GetDagStatus reports run history and the next scheduled fire time.
func (s *Service) GetDagStatus(ctx context.Context, args map[string]any) (any, error) {
	if err := s.metadataDelay.Sleep(ctx); err != nil {
		return nil, err
	}
	dagID, _ := args["dagId"].(string)
	info, err := s.store.Get(dagID)
	if err != nil {
		return nil, err
	}

	runs := s.store.RecentRuns(5)
	info.LastRun = &runs[0]

	res := StatusResult{DagInfo: info, RecentRuns: runs}
	if !info.IsPaused {
		res.NextScheduledRun = NextRun(info.Schedule, time.Now()).Format(time.RFC3339)
	}
	return res, nil
}

// decodeConfig round-trips the raw argument map into a Config.
func decodeConfig(args map[string]any) (Config, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, tool.Errorf(codeDagInvalid, "invalid DAG configuration: %v", err)
	}
	return cfg, nil
}

package catalog

import (
	"context"
	"strings"

	"github.com/ai-tel/mcp-gateway/internal/mock"
	"github.com/ai-tel/mcp-gateway/internal/tool"
)

// Subsystem is the logical server name tools in this package register under.
const Subsystem = "datahub"

const codeTableNotFound = "TABLE_NOT_FOUND"

// Service exposes the catalog as gateway tools.
type Service struct {
	store *Store
	delay mock.Delay
}

// NewService builds the catalog subsystem around store. latencyScale 0
// disables simulated latency.
func NewService(store *Store, latencyScale float64) *Service {
	return &Service{
		store: store,
		delay: mock.MetadataDelay.Scale(latencyScale),
	}
}

// Register installs search_tables, schema_lookup, get_lineage and
// register_lineage into reg.
func (s *Service) Register(reg *tool.Registry) error {
	regs := []struct {
		desc tool.Descriptor
		h    tool.Handler
	}{
		{searchTablesDescriptor, s.SearchTables},
		{schemaLookupDescriptor, s.SchemaLookup},
		{getLineageDescriptor, s.GetLineage},
		{registerLineageDescriptor, s.RegisterLineage},
	}
	for _, r := range regs {
		if err := reg.Register(r.desc, r.h); err != nil {
			return err
		}
	}
	return nil
}

var searchTablesDescriptor = tool.Descriptor{
	Name:        "search_tables",
	Subsystem:   Subsystem,
	Description: "Search for tables by keyword in name, description, tags, or columns. Returns matching tables with metadata.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": `Search keyword (e.g., "STB", "품질", "quality")`,
			},
			"limit": map[string]any{
				"type":        "number",
				"description": "Maximum number of results to return",
				"default":     10,
			},
		},
		"required": []string{"query"},
	},
}

var schemaLookupDescriptor = tool.Descriptor{
	Name:        "schema_lookup",
	Subsystem:   Subsystem,
	Description: "Get detailed schema information for a table including columns, types, descriptions, and metadata.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tableName": map[string]any{
				"type":        "string",
				"description": `Table name (e.g., "iptv.tb_stb_5min_qual") or catalog URN`,
			},
		},
		"required": []string{"tableName"},
	},
}

var getLineageDescriptor = tool.Descriptor{
	Name:        "get_lineage",
	Subsystem:   Subsystem,
	Description: "Get upstream and/or downstream lineage for a dataset. Shows data dependencies and transformations.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"datasetUrn": map[string]any{
				"type":        "string",
				"description": `Dataset URN or table name (e.g., "iptv.tb_stb_5min_qual")`,
			},
			"direction": map[string]any{
				"type":        "string",
				"enum":        []string{"upstream", "downstream", "both"},
				"description": "Lineage direction to retrieve",
				"default":     "both",
			},
			"depth": map[string]any{
				"type":        "number",
				"description": "How many levels of lineage to traverse (1-5)",
				"default":     1,
			},
		},
		"required": []string{"datasetUrn"},
	},
}

var registerLineageDescriptor = tool.Descriptor{
	Name:        "register_lineage",
	Subsystem:   Subsystem,
	Description: "Register a new lineage relationship between two datasets. Creates a data flow dependency.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sourceUrn": map[string]any{
				"type":        "string",
				"description": "Source dataset URN or table name (upstream data source)",
			},
			"targetUrn": map[string]any{
				"type":        "string",
				"description": "Target dataset URN or table name (downstream data consumer)",
			},
			"type": map[string]any{
				"type":        "string",
				"enum":        []string{EdgeTransformed, EdgeDerived, EdgeCopied},
				"description": "Type of lineage relationship",
				"default":     EdgeTransformed,
			},
		},
		"required": []string{"sourceUrn", "targetUrn"},
	},
}

// SearchMatch is one search_tables hit.
type SearchMatch struct {
	URN           string   `json:"urn"`
	Name          string   `json:"name"`
	Platform      string   `json:"platform"`
	Schema        string   `json:"schema"`
	Description   string   `json:"description"`
	MatchedFields []string `json:"matchedFields"`
}

// SearchTables returns datasets matching the query keyword.
func (s *Service) SearchTables(ctx context.Context, args map[string]any) (any, error) {
	if err := s.delay.Sleep(ctx); err != nil {
		return nil, err
	}
	query, _ := args["query"].(string)
	limit := 10
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	hits := s.store.Search(query, limit)
	out := make([]SearchMatch, 0, len(hits))
	for _, d := range hits {
		out = append(out, SearchMatch{
			URN:           d.URN,
			Name:          d.FullName(),
			Platform:      d.Platform,
			Schema:        d.Schema,
			Description:   d.Description,
			MatchedFields: d.matches(query),
		})
	}
	return out, nil
}

// SchemaLookup returns the full dataset record for a table name or URN.
func (s *Service) SchemaLookup(ctx context.Context, args map[string]any) (any, error) {
	if err := s.delay.Sleep(ctx); err != nil {
		return nil, err
	}
	tableName, _ := args["tableName"].(string)
	d, ok := s.store.Resolve(tableName)
	if !ok {
		return nil, s.notFound("table", tableName)
	}
	return d, nil
}

// LineageGraph is the get_lineage payload.
type LineageGraph struct {
	Dataset    string `json:"dataset"`
	Upstream   []Node `json:"upstream"`
	Downstream []Node `json:"downstream"`
}

// GetLineage walks the lineage graph around a dataset.
func (s *Service) GetLineage(ctx context.Context, args map[string]any) (any, error) {
	if err := s.delay.Sleep(ctx); err != nil {
		return nil, err
	}
	ref, _ := args["datasetUrn"].(string)
	direction, _ := args["direction"].(string)
	if direction == "" {
		direction = "both"
	}
	depth := 1
	if d, ok := args["depth"].(float64); ok {
		depth = int(d)
	}

	d, ok := s.store.Resolve(ref)
	if !ok {
		return nil, s.notFound("dataset", ref)
	}

	graph := LineageGraph{
		Dataset:    d.FullName(),
		Upstream:   []Node{},
		Downstream: []Node{},
	}
	if direction == "upstream" || direction == "both" {
		graph.Upstream = s.store.Upstream(d.URN, depth)
	}
	if direction == "downstream" || direction == "both" {
		graph.Downstream = s.store.Downstream(d.URN, depth)
	}
	return graph, nil
}

// RegistrationResult is the register_lineage payload.
type RegistrationResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	SourceDataset string `json:"sourceDataset"`
	TargetDataset string `json:"targetDataset"`
	Type          string `json:"type"`
}

// RegisterLineage records an edge between two known datasets. Re-registering
// an existing pair is reported as success without creating a duplicate.
func (s *Service) RegisterLineage(ctx context.Context, args map[string]any) (any, error) {
	if err := s.delay.Sleep(ctx); err != nil {
		return nil, err
	}
	sourceRef, _ := args["sourceUrn"].(string)
	targetRef, _ := args["targetUrn"].(string)
	edgeType, _ := args["type"].(string)
	if edgeType == "" {
		edgeType = EdgeTransformed
	}

	source, ok := s.store.Resolve(sourceRef)
	if !ok {
		return nil, s.notFound("source dataset", sourceRef)
	}
	target, ok := s.store.Resolve(targetRef)
	if !ok {
		return nil, s.notFound("target dataset", targetRef)
	}

	s.store.AddEdge(source.URN, target.URN, edgeType)
	return RegistrationResult{
		Success:       true,
		Message:       "Lineage relationship registered successfully",
		SourceDataset: source.FullName(),
		TargetDataset: target.FullName(),
		Type:          edgeType,
	}, nil
}

func (s *Service) notFound(kind, ref string) error {
	return tool.Errorf(codeTableNotFound, "%s '%s' not found. Available tables: %s",
		kind, ref, strings.Join(s.store.Names(), ", "))
}

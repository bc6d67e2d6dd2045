// Package catalog mocks a data catalog over the IPTV warehouse: dataset
// metadata, keyword search, and a lineage graph with runtime-registered edges.
package catalog

import (
	"strings"
	"time"

	"github.com/ai-tel/mcp-gateway/internal/mock"
)

// Dataset is one catalog entry.
type Dataset struct {
	URN          string        `json:"urn"`
	Name         string        `json:"name"`
	Platform     string        `json:"platform"`
	Schema       string        `json:"schema"`
	Description  string        `json:"description"`
	Columns      []mock.Column `json:"columns"`
	Tags         []string      `json:"tags"`
	Owners       []string      `json:"owners"`
	LastModified string        `json:"lastModified"`
}

// Edge is one lineage relationship from source to target.
type Edge struct {
	SourceURN string `json:"sourceUrn"`
	TargetURN string `json:"targetUrn"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

// Edge types.
const (
	EdgeTransformed = "TRANSFORMED"
	EdgeDerived     = "DERIVED"
	EdgeCopied      = "COPIED"
)

func hiveURN(table string) string {
	return "urn:li:dataset:(urn:li:dataPlatform:hive," + table + ",PROD)"
}

func datasetFor(table, description string, tags []string, owners []string, modified string) Dataset {
	t := mock.LookupTable(table)
	return Dataset{
		URN:          hiveURN(table),
		Name:         t.Name,
		Platform:     "hive",
		Schema:       t.Schema,
		Description:  description,
		Columns:      t.Columns,
		Tags:         tags,
		Owners:       owners,
		LastModified: modified,
	}
}

// Seed catalog content. Column definitions come from the mock warehouse so
// schema_lookup and execute_sql can never disagree.
func seedDatasets() []Dataset {
	return []Dataset{
		datasetFor("iptv.tb_stb_5min_qual",
			"STB 5분 단위 품질 지표 테이블. 각 STB 모델별 5분 간격 품질 메트릭 수집.",
			[]string{"iptv", "quality", "stb", "5min", "realtime"},
			[]string{"data-platform@company.com"},
			"2024-01-15T10:30:00Z"),
		datasetFor("iptv.tb_stb_quality_daily_dist",
			"일별 품질 정규분포 통계 테이블. tb_stb_5min_qual 데이터를 일단위로 집계한 통계 데이터.",
			[]string{"iptv", "quality", "stb", "daily", "statistics", "aggregation"},
			[]string{"data-platform@company.com"},
			"2024-01-15T08:00:00Z"),
		datasetFor("iptv.tb_stb_master",
			"STB 장비 마스터 테이블. 모든 STB 장비의 기본 정보.",
			[]string{"iptv", "stb", "master", "device"},
			[]string{"device-team@company.com"},
			"2024-01-10T14:00:00Z"),
		datasetFor("iptv.tb_channel_schedule",
			"채널 편성표 테이블. TV 채널별 프로그램 스케줄 정보.",
			[]string{"iptv", "channel", "schedule", "program"},
			[]string{"content-team@company.com"},
			"2024-01-14T20:00:00Z"),
	}
}

func seedEdges() []Edge {
	return []Edge{
		{
			SourceURN: hiveURN("iptv.tb_stb_5min_qual"),
			TargetURN: hiveURN("iptv.tb_stb_quality_daily_dist"),
			Type:      EdgeTransformed,
			CreatedAt: "2024-01-01T00:00:00Z",
		},
		{
			SourceURN: hiveURN("iptv.tb_stb_master"),
			TargetURN: hiveURN("iptv.tb_stb_5min_qual"),
			Type:      EdgeDerived,
			CreatedAt: "2024-01-01T00:00:00Z",
		},
	}
}

// FullName is the schema-qualified table name of d.
func (d Dataset) FullName() string {
	return d.Schema + "." + d.Name
}

func (d Dataset) matches(query string) []string {
	q := strings.ToLower(query)
	var fields []string
	if strings.Contains(strings.ToLower(d.Name), q) {
		fields = append(fields, "name")
	}
	if strings.Contains(strings.ToLower(d.Description), q) {
		fields = append(fields, "description")
	}
	for _, tag := range d.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			fields = append(fields, "tags")
			break
		}
	}
	for _, col := range d.Columns {
		if strings.Contains(strings.ToLower(col.Name), q) ||
			strings.Contains(strings.ToLower(col.Description), q) {
			fields = append(fields, "columns")
			break
		}
	}
	return fields
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Package mock fabricates the IPTV quality warehouse the gateway pretends to
// query: table schemas, synthetic row generation, and latency simulation.
package mock

import (
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Column describes one column of a mock table.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	Description string `json:"description,omitempty"`
	PrimaryKey  bool   `json:"isPrimaryKey,omitempty"`
}

// Table is a mock table schema plus per-column value generators.
type Table struct {
	Name       string
	Schema     string
	FullName   string
	Columns    []Column
	generators map[string]func(*gofakeit.Faker) any
}

var stbModels = []string{"STB-2000X", "STB-3000S", "STB-4000P"}

func recentTimestamp(f *gofakeit.Faker, days int) time.Time {
	back := time.Duration(f.IntRange(0, days*24*3600)) * time.Second
	return time.Now().UTC().Add(-back)
}

var tables = map[string]*Table{
	"iptv.tb_stb_5min_qual": {
		Name:     "tb_stb_5min_qual",
		Schema:   "iptv",
		FullName: "iptv.tb_stb_5min_qual",
		Columns: []Column{
			{Name: "collect_dt", Type: "timestamp", Description: "수집일시", PrimaryKey: true},
			{Name: "stb_model_cd", Type: "varchar(50)", Description: "장비모델코드", PrimaryKey: true},
			{Name: "mlr", Type: "float", Nullable: true, Description: "Media Loss Rate"},
			{Name: "jitter", Type: "float", Nullable: true, Description: "Jitter (ms)"},
			{Name: "ts_loss", Type: "int", Nullable: true, Description: "TS Packet Loss"},
			{Name: "buffering_cnt", Type: "int", Nullable: true, Description: "버퍼링 횟수"},
			{Name: "bitrate_avg", Type: "float", Nullable: true, Description: "평균 비트레이트"},
		},
		generators: map[string]func(*gofakeit.Faker) any{
			"collect_dt":    func(f *gofakeit.Faker) any { return recentTimestamp(f, 7).Format(time.RFC3339) },
			"stb_model_cd":  func(f *gofakeit.Faker) any { return f.RandomString(stbModels) },
			"mlr":           func(f *gofakeit.Faker) any { return f.Float64Range(0.0005, 0.002) },
			"jitter":        func(f *gofakeit.Faker) any { return f.Float64Range(5, 20) },
			"ts_loss":       func(f *gofakeit.Faker) any { return f.IntRange(0, 100) },
			"buffering_cnt": func(f *gofakeit.Faker) any { return f.IntRange(0, 10) },
			"bitrate_avg":   func(f *gofakeit.Faker) any { return f.Float64Range(2000, 8000) },
		},
	},
	"iptv.tb_stb_quality_daily_dist": {
		Name:     "tb_stb_quality_daily_dist",
		Schema:   "iptv",
		FullName: "iptv.tb_stb_quality_daily_dist",
		Columns: []Column{
			{Name: "stat_date", Type: "date", Description: "통계일자", PrimaryKey: true},
			{Name: "stb_model_cd", Type: "varchar(50)", Description: "장비모델코드", PrimaryKey: true},
			{Name: "mlr_mean", Type: "float", Nullable: true, Description: "MLR 평균"},
			{Name: "mlr_stddev", Type: "float", Nullable: true, Description: "MLR 표준편차"},
			{Name: "jitter_mean", Type: "float", Nullable: true, Description: "Jitter 평균"},
			{Name: "jitter_stddev", Type: "float", Nullable: true, Description: "Jitter 표준편차"},
		},
		generators: map[string]func(*gofakeit.Faker) any{
			"stat_date":     func(f *gofakeit.Faker) any { return recentTimestamp(f, 30).Format("2006-01-02") },
			"stb_model_cd":  func(f *gofakeit.Faker) any { return f.RandomString(stbModels) },
			"mlr_mean":      func(f *gofakeit.Faker) any { return f.Float64Range(0.0008, 0.0015) },
			"mlr_stddev":    func(f *gofakeit.Faker) any { return f.Float64Range(0.0001, 0.0004) },
			"jitter_mean":   func(f *gofakeit.Faker) any { return f.Float64Range(8, 15) },
			"jitter_stddev": func(f *gofakeit.Faker) any { return f.Float64Range(1, 5) },
		},
	},
	"iptv.tb_stb_master": {
		Name:     "tb_stb_master",
		Schema:   "iptv",
		FullName: "iptv.tb_stb_master",
		Columns: []Column{
			{Name: "stb_id", Type: "varchar(50)", Description: "STB 고유 ID", PrimaryKey: true},
			{Name: "stb_model_cd", Type: "varchar(50)", Description: "장비모델코드"},
			{Name: "customer_id", Type: "varchar(50)", Nullable: true, Description: "고객 ID"},
			{Name: "install_date", Type: "date", Nullable: true, Description: "설치일자"},
			{Name: "region_cd", Type: "varchar(10)", Nullable: true, Description: "지역코드"},
			{Name: "firmware_version", Type: "varchar(20)", Nullable: true, Description: "펌웨어 버전"},
		},
		generators: map[string]func(*gofakeit.Faker) any{
			"stb_id":           func(f *gofakeit.Faker) any { return "stb-" + f.UUID() },
			"stb_model_cd":     func(f *gofakeit.Faker) any { return f.RandomString(stbModels) },
			"customer_id":      func(f *gofakeit.Faker) any { return "cust-" + f.DigitN(8) },
			"install_date":     func(f *gofakeit.Faker) any { return recentTimestamp(f, 365).Format("2006-01-02") },
			"region_cd":        func(f *gofakeit.Faker) any { return f.RandomString([]string{"SEL", "PUS", "ICN", "DGU"}) },
			"firmware_version": func(f *gofakeit.Faker) any { return f.AppVersion() },
		},
	},
	"iptv.tb_channel_schedule": {
		Name:     "tb_channel_schedule",
		Schema:   "iptv",
		FullName: "iptv.tb_channel_schedule",
		Columns: []Column{
			{Name: "channel_id", Type: "varchar(20)", Description: "채널 ID", PrimaryKey: true},
			{Name: "program_id", Type: "varchar(50)", Description: "프로그램 ID", PrimaryKey: true},
			{Name: "start_time", Type: "timestamp", Description: "시작시간", PrimaryKey: true},
			{Name: "end_time", Type: "timestamp", Description: "종료시간"},
			{Name: "program_name", Type: "varchar(200)", Nullable: true, Description: "프로그램명"},
			{Name: "genre", Type: "varchar(50)", Nullable: true, Description: "장르"},
		},
		generators: map[string]func(*gofakeit.Faker) any{
			"channel_id":   func(f *gofakeit.Faker) any { return "ch-" + f.DigitN(3) },
			"program_id":   func(f *gofakeit.Faker) any { return "prog-" + f.DigitN(6) },
			"start_time":   func(f *gofakeit.Faker) any { return recentTimestamp(f, 1).Format(time.RFC3339) },
			"end_time":     func(f *gofakeit.Faker) any { return recentTimestamp(f, 1).Format(time.RFC3339) },
			"program_name": func(f *gofakeit.Faker) any { return f.MovieName() },
			"genre":        func(f *gofakeit.Faker) any { return f.RandomString([]string{"drama", "news", "sports", "kids", "documentary"}) },
		},
	},
}

var faker = gofakeit.New(0)

// LookupTable resolves a table by its schema-qualified name, case
// insensitively. Returns nil when unknown.
func LookupTable(name string) *Table {
	return tables[strings.ToLower(strings.TrimSpace(name))]
}

// TableNames returns all known schema-qualified table names, sorted.
func TableNames() []string {
	out := make([]string, 0, len(tables))
	for name := range tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ColumnNames returns the column names of t in declaration order.
func (t *Table) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Row fabricates one row keyed by column name.
func (t *Table) Row() map[string]any {
	row := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		if gen, ok := t.generators[c.Name]; ok {
			row[c.Name] = gen(faker)
		}
	}
	return row
}

// Rows fabricates n rows.
func (t *Table) Rows(n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, t.Row())
	}
	return rows
}

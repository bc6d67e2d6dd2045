// Package dag mocks an Airflow deployment: DAG code generation, heuristic
// validation, a file-backed registry, and fabricated run history.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Task is one task definition inside a DAG config.
type Task struct {
	TaskID       string         `json:"taskId"`
	Operator     string         `json:"operator"`
	Params       map[string]any `json:"params"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Config drives code generation for one DAG.
type Config struct {
	DagID       string         `json:"dagId"`
	Description string         `json:"description,omitempty"`
	Schedule    string         `json:"schedule"`
	StartDate   string         `json:"startDate"`
	Catchup     bool           `json:"catchup,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Tasks       []Task         `json:"tasks"`
	DefaultArgs map[string]any `json:"defaultArgs,omitempty"`
}

var operatorImports = map[string]string{
	"PythonOperator":      "from airflow.operators.python import PythonOperator",
	"BashOperator":        "from airflow.operators.bash import BashOperator",
	"DummyOperator":       "from airflow.operators.dummy import DummyOperator",
	"EmptyOperator":       "from airflow.operators.empty import EmptyOperator",
	"SparkSubmitOperator": "from airflow.providers.apache.spark.operators.spark_submit import SparkSubmitOperator",
	"HiveOperator":        "from airflow.providers.apache.hive.operators.hive import HiveOperator",
	"SqlSensor":           "from airflow.providers.common.sql.sensors.sql import SqlSensor",
}

// formatPythonValue renders a JSON-decoded value as a Python literal.
func formatPythonValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return `"` + strings.ReplaceAll(val, `"`, `\"`) + `"`
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case int:
		return fmt.Sprintf("%d", val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatPythonValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatPythonValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, `"`+k+`": `+formatPythonValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func taskCode(t Task) string {
	const indent = "    "
	className := t.Operator

	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var params []string
	for _, k := range keys {
		params = append(params, fmt.Sprintf("%s    %s=%s,", indent, k, formatPythonValue(t.Params[k])))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s = %s(\n", indent, t.TaskID, className)
	fmt.Fprintf(&b, "%s    task_id=%q,\n", indent, t.TaskID)
	b.WriteString(strings.Join(params, "\n"))
	if len(params) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(indent + ")")
	return b.String()
}

func dependencyCode(tasks []Task) string {
	const indent = "    "
	var deps []string
	for _, t := range tasks {
		switch {
		case len(t.Dependencies) == 1:
			deps = append(deps, fmt.Sprintf("%s%s >> %s", indent, t.Dependencies[0], t.TaskID))
		case len(t.Dependencies) > 1:
			deps = append(deps, fmt.Sprintf("%s[%s] >> %s", indent, strings.Join(t.Dependencies, ", "), t.TaskID))
		}
	}
	return strings.Join(deps, "\n")
}

// Generate renders cfg into Airflow DAG Python code.
func Generate(cfg Config) string {
	imports := map[string]bool{}
	for _, t := range cfg.Tasks {
		if imp, ok := operatorImports[t.Operator]; ok {
			imports[imp] = true
		}
	}
	importLines := make([]string, 0, len(imports))
	for imp := range imports {
		importLines = append(importLines, imp)
	}
	sort.Strings(importLines)

	defaultArgs := map[string]any{
		"owner":            "airflow",
		"depends_on_past":  false,
		"email_on_failure": false,
		"email_on_retry":   false,
		"retries":          1,
	}
	for k, v := range cfg.DefaultArgs {
		defaultArgs[k] = v
	}
	argKeys := make([]string, 0, len(defaultArgs))
	for k := range defaultArgs {
		argKeys = append(argKeys, k)
	}
	sort.Strings(argKeys)
	var argLines []string
	for _, k := range argKeys {
		argLines = append(argLines, fmt.Sprintf("    %q: %s,", k, formatPythonValue(defaultArgs[k])))
	}

	description := cfg.Description
	if description == "" {
		description = "Auto-generated DAG"
	}

	taskBlocks := make([]string, 0, len(cfg.Tasks))
	for _, t := range cfg.Tasks {
		taskBlocks = append(taskBlocks, taskCode(t))
	}

	depsBlock := dependencyCode(cfg.Tasks)
	if depsBlock == "" {
		depsBlock = "    pass"
	}

	tagsLine := ""
	if len(cfg.Tags) > 0 {
		tagsLine = "    tags=" + formatPythonValue(cfg.Tags) + ",\n"
	}

	return fmt.Sprintf(`"""
DAG: %s
%s
"""
from datetime import datetime, timedelta
from airflow import DAG
%s

default_args = {
%s
}

with DAG(
    dag_id=%q,
    default_args=default_args,
    description=%q,
    schedule_interval=%q,
    start_date=datetime.fromisoformat(%q),
    catchup=%s,
%s) as dag:

%s

    # Task dependencies
%s
`,
		cfg.DagID,
		description,
		strings.Join(importLines, "\n"),
		strings.Join(argLines, "\n"),
		cfg.DagID,
		func() string {
			if cfg.Description != "" {
				return cfg.Description
			}
			return cfg.DagID
		}(),
		cfg.Schedule,
		cfg.StartDate,
		formatPythonValue(cfg.Catchup),
		tagsLine,
		strings.Join(taskBlocks, "\n\n"),
		depsBlock,
	)
}

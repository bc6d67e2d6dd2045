package dag

import (
	"fmt"
	"regexp"
	"strings"
)

const codeDagInvalid = "DAG_INVALID"

// ValidationError is one blocking finding in DAG code.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationWarning is a non-blocking finding with an optional suggestion.
type ValidationWarning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ValidationResult is the validate_dag payload.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
}

var (
	dagDefRe     = regexp.MustCompile(`DAG\s*\(`)
	dagIDRe      = regexp.MustCompile(`dag_id\s*=\s*["']([^"']+)["']`)
	dagIDFmtRe   = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	taskIDRe     = regexp.MustCompile(`task_id\s*=\s*["']([^"']+)["']`)
	depRe        = regexp.MustCompile(`(\w+)\s*>>\s*(\w+)`)
	credentialRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)password\s*=\s*["'][^"']+["']`),
		regexp.MustCompile(`(?i)secret\s*=\s*["'][^"']+["']`),
		regexp.MustCompile(`(?i)api_key\s*=\s*["'][^"']+["']`),
	}
)

// Validate runs heuristic checks over DAG Python code without executing it.
func Validate(code string) ValidationResult {
	errs := []ValidationError{}
	warns := []ValidationWarning{}

	fail := func(msg string) {
		errs = append(errs, ValidationError{Code: codeDagInvalid, Message: msg})
	}

	if strings.TrimSpace(code) == "" {
		fail("DAG code is empty")
		return ValidationResult{Valid: false, Errors: errs, Warnings: warns}
	}

	if !strings.Contains(code, "from airflow import DAG") &&
		!strings.Contains(code, "from airflow.models import DAG") {
		fail(`missing required import: "from airflow import DAG"`)
	}

	if !dagDefRe.MatchString(code) {
		fail("no DAG definition found")
	}

	if m := dagIDRe.FindStringSubmatch(code); m == nil {
		fail("missing dag_id parameter in DAG definition")
	} else if !dagIDFmtRe.MatchString(m[1]) {
		fail(fmt.Sprintf("invalid dag_id format: %q. Must start with lowercase letter and contain only lowercase letters, numbers, and underscores.", m[1]))
	}

	if !strings.Contains(code, "schedule_interval") &&
		!strings.Contains(code, "schedule=") && !strings.Contains(code, "schedule =") {
		warns = append(warns, ValidationWarning{
			Code:       "W001",
			Message:    "No schedule_interval or schedule defined",
			Suggestion: `Add schedule_interval parameter (e.g., schedule_interval="@daily")`,
		})
	}

	if !strings.Contains(code, "start_date") {
		fail("missing start_date in DAG definition or default_args")
	}

	seen := map[string]bool{}
	var dupes []string
	for _, m := range taskIDRe.FindAllStringSubmatch(code, -1) {
		if seen[m[1]] {
			dupes = append(dupes, m[1])
		}
		seen[m[1]] = true
	}
	if len(dupes) > 0 {
		fail("duplicate task IDs found: " + strings.Join(dupes, ", "))
	}
	if len(seen) == 0 {
		warns = append(warns, ValidationWarning{
			Code:       "W002",
			Message:    "No tasks defined in DAG",
			Suggestion: "Add at least one task to the DAG",
		})
	}

	if hasDependencyCycle(code) {
		fail("circular dependency detected in task dependencies")
	}

	if strings.Contains(code, "datetime.now()") {
		warns = append(warns, ValidationWarning{
			Code:       "W003",
			Message:    "Using datetime.now() can cause issues",
			Suggestion: "Use {{ ds }} or {{ execution_date }} templates instead",
		})
	}

	for _, re := range credentialRe {
		if re.MatchString(code) {
			warns = append(warns, ValidationWarning{
				Code:       "W004",
				Message:    "Possible hardcoded credentials detected",
				Suggestion: "Use Airflow Variables or Connections for sensitive data",
			})
			break
		}
	}

	for _, pair := range [][2]string{{"(", ")"}, {"{", "}"}, {"[", "]"}} {
		if strings.Count(code, pair[0]) != strings.Count(code, pair[1]) {
			names := map[string]string{"(": "parentheses", "{": "curly braces", "[": "square brackets"}
			fail("unbalanced " + names[pair[0]] + " in code")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// hasDependencyCycle extracts `a >> b` edges and runs DFS cycle detection.
func hasDependencyCycle(code string) bool {
	upstreams := map[string][]string{}
	for _, m := range depRe.FindAllStringSubmatch(code, -1) {
		upstreams[m[2]] = append(upstreams[m[2]], m[1])
	}

	visited := map[string]bool{}
	var visit func(id string, stack map[string]bool) bool
	visit = func(id string, stack map[string]bool) bool {
		visited[id] = true
		stack[id] = true
		for _, dep := range upstreams[id] {
			if !visited[dep] {
				if visit(dep, stack) {
					return true
				}
			} else if stack[dep] {
				return true
			}
		}
		delete(stack, id)
		return false
	}

	for id := range upstreams {
		if !visited[id] {
			if visit(id, map[string]bool{}) {
				return true
			}
		}
	}
	return false
}

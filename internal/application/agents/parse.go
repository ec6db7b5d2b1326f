package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
)

// DefaultScore is used when no quality score can be read from the reviewer output.
const DefaultScore = 8

var errNoPlan = errors.New("no task list found in planner output")

// ParsePlan extracts the JSON task list enclosed by the first '[' and the last ']'.
// Tasks without a description are dropped; the rest are ordered by priority,
// keeping model order for ties and placing unprioritised tasks last.
func ParsePlan(text string) ([]analysis.ResearchTask, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return nil, errNoPlan
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	tasks := make([]analysis.ResearchTask, 0, len(raw))
	for _, item := range raw {
		desc, _ := item["description"].(string)
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}
		typ, _ := item["task_type"].(string)
		tasks = append(tasks, analysis.ResearchTask{
			TaskType:    analysis.TaskType(strings.TrimSpace(typ)),
			Description: desc,
			Priority:    priorityOf(item["priority"]),
		})
	}
	if len(tasks) == 0 {
		return nil, errNoPlan
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		pi, pj := tasks[i].Priority, tasks[j].Priority
		if pi <= 0 {
			return false
		}
		if pj <= 0 {
			return true
		}
		return pi < pj
	})
	return tasks, nil
}

func priorityOf(v any) int {
	switch p := v.(type) {
	case float64:
		return int(p)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			return n
		}
	}
	return 0
}

// DefaultPlan is used when the planner output cannot be parsed.
func DefaultPlan(company string) []analysis.ResearchTask {
	return []analysis.ResearchTask{
		{TaskType: analysis.TaskStockData, Description: "Get current stock data for " + company, Priority: 1},
		{TaskType: analysis.TaskEarnings, Description: "Analyze financial statements for " + company, Priority: 2},
		{TaskType: analysis.TaskNews, Description: "Get recent financial news for " + company, Priority: 3},
		{TaskType: analysis.TaskSECFiling, Description: "Review recent SEC filings for " + company, Priority: 4},
	}
}

// FallbackPlan is used when the planner could not reach the generator at all.
func FallbackPlan(company string) []string {
	return []string{
		"Get stock data for " + company,
		"Analyze financials for " + company,
		"Get news for " + company,
	}
}

// ParseScore reads the first integer after "QUALITY_SCORE:". It returns
// DefaultScore when the marker is missing or unreadable.
func ParseScore(text string) int {
	for _, line := range strings.Split(text, "\n") {
		idx := strings.Index(line, "QUALITY_SCORE:")
		if idx == -1 {
			continue
		}
		fields := strings.Fields(line[idx+len("QUALITY_SCORE:"):])
		if len(fields) == 0 {
			return DefaultScore
		}
		tok := fields[0]
		n := 0
		for n < len(tok) && tok[n] >= '0' && tok[n] <= '9' {
			n++
		}
		if n == 0 {
			return DefaultScore
		}
		score, err := strconv.Atoi(tok[:n])
		if err != nil {
			return DefaultScore
		}
		return score
	}
	return DefaultScore
}

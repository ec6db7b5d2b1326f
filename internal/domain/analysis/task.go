package analysis

// TaskType classifies a research task produced by the planner.
type TaskType string

const (
	TaskStockData        TaskType = "stock_data"
	TaskEarnings         TaskType = "earnings"
	TaskNews             TaskType = "news"
	TaskSECFiling        TaskType = "sec_filing"
	TaskIndustryAnalysis TaskType = "industry_analysis"
)

// ResearchTask only lives inside the planner; State keeps descriptions.
type ResearchTask struct {
	TaskType    TaskType `json:"task_type"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	Completed   bool     `json:"completed"`
}

// Market labels attached to the market source record.
const (
	MarketRegional      = "regional"
	MarketInternational = "international"
)

// MarketLabel renders a market tag for prompts and reports.
func MarketLabel(market string) string {
	if market == MarketRegional {
		return "Indian Market"
	}
	return "International Market"
}

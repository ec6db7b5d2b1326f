package canned

// Prompt markers of the five pipeline stages.
const (
	MarkPlanner = "research planner"
	MarkAnalyst = "senior financial analyst"
	MarkWriter  = "writing for institutional investors"
	MarkChecker = "You review investment research reports"
)

const offlinePlan = `[
  {"task_type": "stock_data", "description": "Collect current price, valuation multiples and one-year performance", "priority": 1},
  {"task_type": "earnings", "description": "Review the latest income statement, balance sheet and cash flow", "priority": 2},
  {"task_type": "news", "description": "Summarise recent news and market sentiment", "priority": 3},
  {"task_type": "sec_filing", "description": "Check the most recent regulatory filings", "priority": 4}
]`

const offlineAnalysis = `1. EXECUTIVE SUMMARY
The company shows stable revenue growth with healthy margins.

2. FINANCIAL HEALTH ASSESSMENT
Revenue and profit trends are positive; the balance sheet carries moderate leverage and cash flow covers capital spending.

3. VALUATION ANALYSIS
The P/E multiple is in line with sector peers, suggesting a fair valuation.

4. GROWTH PROSPECTS
Growth is driven by product expansion and pricing power.

5. RISK FACTORS
Competition, regulation and macroeconomic conditions.

6. INVESTMENT RECOMMENDATION
HOLD with a modest upside to the current price.`

const offlineReport = `EXECUTIVE SUMMARY
The business combines steady revenue growth with resilient profit margins and a conservative balance sheet.

INVESTMENT RECOMMENDATION
Recommendation: HOLD. Target price is set close to the current price with a twelve month horizon, reflecting balanced upside and downside.

FINANCIAL ANALYSIS
Revenue grew in each of the last reporting periods. Operating profit improved as costs were kept under control, and free cash flow remained positive after capital expenditure.

GROWTH PROSPECTS
New product lines and expansion into adjacent markets support mid single digit growth over the next few years.

RISK FACTORS
Competitive pressure, regulatory changes and a slower economy could weigh on margins and demand.

VALUATION
The current valuation multiple sits near the sector average, so the stock looks fairly priced relative to peers.

CONCLUSION
A quality business at a fair price. We recommend HOLD and would revisit on a pullback.`

const offlineReview = `QUALITY_SCORE: 8
ISSUES_FOUND: none
RECOMMENDATION: APPROVE`

// Offline returns the script used when no model is configured: a valid plan,
// an analysis, a report body that passes the quality gates, and an approving review.
func Offline() *Generator {
	return New(
		Rule{Contains: MarkPlanner, Reply: offlinePlan},
		Rule{Contains: MarkAnalyst, Reply: offlineAnalysis},
		Rule{Contains: MarkWriter, Reply: offlineReport},
		Rule{Contains: MarkChecker, Reply: offlineReview},
	)
}

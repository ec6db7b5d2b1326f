package agents

import (
	"fmt"
	"strings"
)

const plannerSystemPrompt = `You are a senior equity research planner.
Break the analysis of a company into a short list of concrete research tasks covering:
- current share price, valuation and historical performance
- latest earnings and financial statements
- industry position and peers
- recent news and market sentiment
- regulatory filings

Return only a JSON array, for example:
[
  {"task_type": "stock_data", "description": "Collect current price and one-year performance", "priority": 1},
  {"task_type": "earnings", "description": "Review the latest quarterly results", "priority": 2}
]
Allowed task_type values: stock_data, earnings, news, sec_filing, industry_analysis.
Keep the plan practical: it must be achievable with public market data.`

func plannerPrompt(company string) (string, string) {
	user := fmt.Sprintf("Build a research plan to analyze %s and reach a buy/hold/sell recommendation. Focus on the essential information only.", company)
	return plannerSystemPrompt, user
}

const analystSystemTemplate = `You are a senior financial analyst specialised in equity research and valuation.
Analyze the data you are given and structure the answer in these sections:
1. EXECUTIVE SUMMARY
2. FINANCIAL HEALTH ASSESSMENT (revenue trend, profitability, balance sheet, cash flow)
3. VALUATION ANALYSIS (P/E and other multiples, fair value, peers)
4. GROWTH PROSPECTS
5. RISK FACTORS
6. INVESTMENT RECOMMENDATION (BUY/HOLD/SELL with a target price when possible)

Rules:
- Today is %s. Use this date; never assume any other current date.
- Quote amounts with the currency given in the data (%s).
- Describe the market exactly as given (%s).
- Prefer concrete figures from the data over generic statements.`

func analystPrompt(company, date, marketLabel, currency, stockSummary, additional string) (string, string) {
	system := fmt.Sprintf(analystSystemTemplate, date, currency, marketLabel)
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the financial data for %s.\n\n", company)
	fmt.Fprintf(&b, "CURRENT DATE: %s\nMARKET: %s\nCURRENCY: %s\n\n", date, marketLabel, currency)
	fmt.Fprintf(&b, "STOCK DATA SUMMARY:\n%s\n\n", stockSummary)
	fmt.Fprintf(&b, "ADDITIONAL DATA:\n%s\n\n", additional)
	b.WriteString("Produce the sectioned analysis with specific metrics and a definitive recommendation.")
	return system, b.String()
}

const writerSystemTemplate = `You are a senior equity research analyst writing for institutional investors.
Write a professional research report with these sections:
1. EXECUTIVE SUMMARY
2. INVESTMENT RECOMMENDATION (BUY/HOLD/SELL, target price with rationale, time horizon)
3. FINANCIAL ANALYSIS
4. GROWTH PROSPECTS
5. RISK FACTORS
6. VALUATION
7. CONCLUSION

Rules:
- Today is %s. Do not date the report with any other day.
- Use the currency %s for every amount.
- Refer to the market as %s.
- End with an explicit final recommendation and a target price.`

func writerPrompt(company, date, marketLabel, currency, analysisText, plan string) (string, string) {
	system := fmt.Sprintf(writerSystemTemplate, date, currency, marketLabel)
	var b strings.Builder
	fmt.Fprintf(&b, "Write the investment research report for %s.\n\n", company)
	fmt.Fprintf(&b, "CURRENT DATE: %s\nMARKET INFORMATION: %s\nCURRENCY: %s\n\n", date, marketLabel, currency)
	fmt.Fprintf(&b, "DETAILED ANALYSIS:\n%s\n\n", analysisText)
	fmt.Fprintf(&b, "RESEARCH PLAN COMPLETED:\n%s", plan)
	return system, b.String()
}

const checkerSystemPrompt = `You review investment research reports. Be practical and generous:
only flag major problems.
Check that the report has essential financial figures, a clear recommendation,
key metrics, and a logical structure.

Answer with exactly these lines:
QUALITY_SCORE: <1-10>
ISSUES_FOUND: <critical problems only, or none>
RECOMMENDATION: APPROVE (score 7 or more) or NEEDS_IMPROVEMENT`

func checkerPrompt(company, report, plan string) (string, string) {
	user := fmt.Sprintf("Review this report for %s.\n\nREPORT:\n%s\n\nORIGINAL RESEARCH PLAN:\n%s", company, report, plan)
	return checkerSystemPrompt, user
}

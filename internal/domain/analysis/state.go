package analysis

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyCompany is returned when an analysis is requested without an identifier.
var ErrEmptyCompany = errors.New("company identifier is required")

// MaxIterations is the iteration count at which the quality gate stops asking
// for another data collection pass.
const MaxIterations = 2

// SourceKey identifies one external data provider inside State.RawData.
type SourceKey string

const (
	SourceMarket       SourceKey = "stock_data"
	SourceFundamentals SourceKey = "alpha_vantage"
	SourceFilings      SourceKey = "sec_filings"
	SourceNews         SourceKey = "news"
)

// SourceKeys is the canonical source order used for rendering.
var SourceKeys = []SourceKey{SourceMarket, SourceFundamentals, SourceFilings, SourceNews}

// Record is a structured payload returned by a data source.
type Record map[string]any

// SourceResult is either a successful record or an error marker, never both.
type SourceResult struct {
	Data Record `json:"data,omitempty"`
	Err  string `json:"error,omitempty"`
}

// Success wraps a record. A nil record is stored as an empty one.
func Success(rec Record) SourceResult {
	if rec == nil {
		rec = Record{}
	}
	return SourceResult{Data: rec}
}

// Failure builds an error marker.
func Failure(msg string) SourceResult {
	if strings.TrimSpace(msg) == "" {
		msg = "unknown error"
	}
	return SourceResult{Err: msg}
}

func (r SourceResult) Failed() bool { return r.Err != "" }

// AnalyzedData holds either a detailed analysis or an error with a fallback sentence.
type AnalyzedData struct {
	DetailedAnalysis string      `json:"detailed_analysis,omitempty"`
	Timestamp        time.Time   `json:"timestamp,omitempty"`
	DataSourcesUsed  []SourceKey `json:"data_sources_used,omitempty"`
	Completeness     float64     `json:"completeness,omitempty"`

	Error            string `json:"error,omitempty"`
	FallbackAnalysis string `json:"fallback_analysis,omitempty"`
}

func (a AnalyzedData) Failed() bool { return a.Error != "" }

// Text returns the best analysis text available.
func (a AnalyzedData) Text() string {
	switch {
	case a.DetailedAnalysis != "":
		return a.DetailedAnalysis
	case a.FallbackAnalysis != "":
		return a.FallbackAnalysis
	default:
		return "No detailed analysis available"
	}
}

// Message is one entry of the audit trail.
type Message struct {
	Stage   string    `json:"stage"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// State is the single record threaded through every step of a run.
// Exactly one step owns it at a time.
type State struct {
	CompanyName        string                     `json:"company_name"`
	ResearchPlan       []string                   `json:"research_plan"`
	RawData            map[SourceKey]SourceResult `json:"raw_data"`
	AnalyzedData       AnalyzedData               `json:"analyzed_data"`
	FinalReport        string                     `json:"final_report"`
	Messages           []Message                  `json:"messages"`
	IterationCount     int                        `json:"iteration_count"`
	QualityCheckPassed bool                       `json:"quality_check_passed"`
}

// NewState returns the zeroed initial state for one analysis request.
func NewState(company string) (*State, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, ErrEmptyCompany
	}
	return &State{
		CompanyName:  company,
		ResearchPlan: []string{},
		RawData:      make(map[SourceKey]SourceResult),
		Messages:     []Message{},
	}, nil
}

// Append adds an audit message. Messages are never removed.
func (s *State) Append(stage, content string, at time.Time) {
	s.Messages = append(s.Messages, Message{Stage: stage, Content: content, At: at})
}

// Merge stores one source result, replacing only that key.
func (s *State) Merge(key SourceKey, res SourceResult) {
	if s.RawData == nil {
		s.RawData = make(map[SourceKey]SourceResult)
	}
	s.RawData[key] = res
}

// SourceKeys returns the populated raw data keys in canonical order.
func (s *State) SourceKeys() []SourceKey {
	out := make([]SourceKey, 0, len(s.RawData))
	for _, k := range SourceKeys {
		if _, ok := s.RawData[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Source returns the successful record for key, if any.
func (s *State) Source(key SourceKey) (Record, bool) {
	res, ok := s.RawData[key]
	if !ok || res.Failed() {
		return nil, false
	}
	return res.Data, true
}

// JoinedSourceKeys renders the raw data keys as "a, b, c".
func (s *State) JoinedSourceKeys() string {
	keys := s.SourceKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/application"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
)

// Stage names used in audit messages and logs.
const (
	StagePlanner = "query_planner"
	StageFetcher = "data_fetcher"
	StageAnalyst = "data_analyst"
	StageWriter  = "report_writer"
	StageChecker = "quality_checker"
)

const (
	dateLayout         = "January 02, 2006"
	defaultCallTimeout = 60 * time.Second
)

// Deps carries the ambient collaborators shared by every step.
// CallTimeout bounds one data source call; GenerateTimeout bounds one
// generation including its retries and defaults to CallTimeout.
type Deps struct {
	Clock           application.Clock
	Logger          *zap.Logger
	CallTimeout     time.Duration
	GenerateTimeout time.Duration
}

func (d Deps) normalized() Deps {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = defaultCallTimeout
	}
	if d.GenerateTimeout <= 0 {
		d.GenerateTimeout = d.CallTimeout
	}
	return d
}

// generate calls gen under GenerateTimeout and rejects blank completions.
func (d Deps) generate(ctx context.Context, gen ai.Generator, system, user string) (string, error) {
	if gen == nil {
		return "", fmt.Errorf("text generation is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, d.GenerateTimeout)
	defer cancel()

	text, err := gen.Generate(ctx, system, user)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}

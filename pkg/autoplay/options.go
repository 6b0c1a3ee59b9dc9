package autoplay

import (
	"fmt"
	"time"

	"github.com/jwebster45206/adventure-agent/pkg/memory"
	"github.com/jwebster45206/adventure-agent/pkg/policy"
	"github.com/jwebster45206/adventure-agent/pkg/prompts"
)

// CallOptions tunes one kind of completion call.
type CallOptions struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// Options tunes the turn loop. Zero values are not defaults; start from DefaultOptions.
type Options struct {
	SummaryInterval int           `yaml:"summary_interval" json:"summary_interval"`
	AdviceInterval  int           `yaml:"advice_interval" json:"advice_interval"`
	CandidateCount  int           `yaml:"candidate_count" json:"candidate_count"`
	ExcerptChars    int           `yaml:"excerpt_chars" json:"excerpt_chars"`
	LoopForbidTurns int           `yaml:"loop_forbid_turns" json:"loop_forbid_turns"`
	Stream          bool          `yaml:"stream" json:"stream"`
	TurnDelay       time.Duration `yaml:"turn_delay" json:"turn_delay"`

	Actor   CallOptions `yaml:"actor" json:"actor"`
	Advisor CallOptions `yaml:"advisor" json:"advisor"`
	Summary CallOptions `yaml:"summary" json:"summary"`
}

func DefaultOptions() Options {
	return Options{
		SummaryInterval: memory.DefaultSummaryPeriod,
		AdviceInterval:  3,
		CandidateCount:  policy.DefaultTopN,
		ExcerptChars:    prompts.DefaultExcerptChars,
		LoopForbidTurns: memory.DefaultForbidTurns,
		Actor:           CallOptions{Temperature: 0.2, MaxTokens: 20},
		Advisor:         CallOptions{Temperature: 0.2, MaxTokens: 30},
		Summary:         CallOptions{Temperature: 0.3, MaxTokens: 100},
	}
}

func (o Options) Validate() error {
	switch {
	case o.SummaryInterval < 1:
		return fmt.Errorf("summary_interval must be at least 1, got %d", o.SummaryInterval)
	case o.AdviceInterval < 0:
		return fmt.Errorf("advice_interval must not be negative, got %d", o.AdviceInterval)
	case o.CandidateCount < 1:
		return fmt.Errorf("candidate_count must be at least 1, got %d", o.CandidateCount)
	case o.ExcerptChars < 1:
		return fmt.Errorf("excerpt_chars must be at least 1, got %d", o.ExcerptChars)
	case o.LoopForbidTurns < 1:
		return fmt.Errorf("loop_forbid_turns must be at least 1, got %d", o.LoopForbidTurns)
	case o.TurnDelay < 0:
		return fmt.Errorf("turn_delay must not be negative")
	}
	for name, c := range map[string]CallOptions{"actor": o.Actor, "advisor": o.Advisor, "summary": o.Summary} {
		if c.Temperature < 0 || c.Temperature > 2 {
			return fmt.Errorf("%s temperature must be between 0 and 2, got %g", name, c.Temperature)
		}
		if c.MaxTokens < 1 {
			return fmt.Errorf("%s max_tokens must be at least 1, got %d", name, c.MaxTokens)
		}
	}
	return nil
}

package policy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"clinicalGym/business/environment"
	"clinicalGym/pkg/logger"
)

// Completer sends a single prompt to a language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// SLM asks a language model to pick the action. Replies that cannot be mapped to
// an action, and failed calls, fall back to a uniform random choice.
type SLM struct {
	client    Completer
	model     string
	labels    []string
	fallback  *Random
	history   []string
	fallbacks atomic.Int64
}

const slmHistory = 5

func NewSLM(client Completer, model string, labels []string, seed *int64) *SLM {
	l := make([]string, len(labels))
	copy(l, labels)
	return &SLM{
		client:   client,
		model:    model,
		labels:   l,
		fallback: NewRandom(len(labels), seed),
	}
}

func (s *SLM) Name() string {
	return KindSLM
}

func (s *SLM) SelectAction(ctx context.Context, obs environment.Observation) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	reply, err := s.client.Complete(ctx, s.model, s.prompt(obs))
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		logger.Warn("slm completion failed, using random action", "model", s.model, "error", err)
		s.fallbacks.Add(1)
		return s.fallback.SelectAction(ctx, obs)
	}

	action, ok := s.parse(reply)
	if !ok {
		logger.Debug("slm reply did not name an action", "reply", reply)
		s.fallbacks.Add(1)
		return s.fallback.SelectAction(ctx, obs)
	}
	return action, nil
}

// Observe keeps a short action/reward history that is fed back into the prompt.
func (s *SLM) Observe(action int, reward float64) {
	if action < 0 || action >= len(s.labels) {
		return
	}
	s.history = append(s.history, fmt.Sprintf("%s -> %.3f", s.labels[action], reward))
	if len(s.history) > slmHistory {
		s.history = s.history[len(s.history)-slmHistory:]
	}
}

// Fallbacks reports how many decisions were made by the random fallback.
func (s *SLM) Fallbacks() int64 {
	return s.fallbacks.Load()
}

func (s *SLM) prompt(obs environment.Observation) string {
	var b strings.Builder
	b.WriteString("You are operating a hospital workflow. Choose exactly one action.\n")
	b.WriteString("Actions:\n")
	for i, l := range s.labels {
		fmt.Fprintf(&b, "%d: %s\n", i, l)
	}
	b.WriteString("State features: [")
	for i, v := range obs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
	}
	b.WriteString("]\n")
	if len(s.history) > 0 {
		b.WriteString("Recent actions and rewards:\n")
		for _, h := range s.history {
			b.WriteString(h)
			b.WriteByte('\n')
		}
	}
	b.WriteString("Reply with the action name only.")
	return b.String()
}

// parse maps a reply onto an action: an exact label, a bare index, or the first
// token that equals a label.
func (s *SLM) parse(reply string) (int, bool) {
	text := strings.ToLower(strings.TrimSpace(reply))
	text = strings.Trim(text, "`\"'. ")
	for i, l := range s.labels {
		if text == l {
			return i, true
		}
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 0 && n < len(s.labels) {
		return n, true
	}

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	for _, tok := range tokens {
		for i, l := range s.labels {
			if tok == l {
				return i, true
			}
		}
	}
	return 0, false
}

package policy

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

type fakeCompleter struct {
	reply  string
	err    error
	calls  int
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.reply, f.err
}

var labels = []string{"resuscitation", "emergent", "urgent", "less_urgent", "non_urgent"}

func TestNew(t *testing.T) {
	if _, err := New("greedy", labels, Options{}); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
	if _, err := New(KindRandom, nil, Options{}); !errors.Is(err, ErrNoActions) {
		t.Fatalf("expected ErrNoActions, got %v", err)
	}
	if _, err := New(KindSLM, labels, Options{}); !errors.Is(err, ErrMissingComplete) {
		t.Fatalf("expected ErrMissingComplete, got %v", err)
	}
	for _, k := range Kinds() {
		opts := Options{Client: &fakeCompleter{reply: "urgent"}}
		p, err := New(k, labels, opts)
		if err != nil {
			t.Fatalf("New(%s): %v", k, err)
		}
		if p.Name() != k {
			t.Fatalf("Name = %s, want %s", p.Name(), k)
		}
	}
}

func TestRandomSeeded(t *testing.T) {
	seed := int64(17)
	a := NewRandom(5, &seed)
	b := NewRandom(5, &seed)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		x, _ := a.SelectAction(ctx, nil)
		y, _ := b.SelectAction(ctx, nil)
		if x != y {
			t.Fatalf("seeded random policies diverged at %d", i)
		}
		if x < 0 || x >= 5 {
			t.Fatalf("action %d out of range", x)
		}
	}
}

func TestRandomHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRandom(3, nil).SelectAction(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSoftmaxLearnsBestArm(t *testing.T) {
	seed := int64(1)
	s := NewSoftmax(3, 0.2, &seed)

	p := s.Probabilities()
	for i := range p {
		if p[i] < 0.33 || p[i] > 0.34 {
			t.Fatalf("expected uniform prior, got %v", p)
		}
	}

	for i := 0; i < 20; i++ {
		s.Observe(0, 0)
		s.Observe(1, 2)
		s.Observe(2, 0.5)
	}
	if v := s.Values(); v[1] != 2 {
		t.Fatalf("running mean = %v, want 2", v[1])
	}

	hits := 0
	for i := 0; i < 200; i++ {
		a, err := s.SelectAction(context.Background(), nil)
		if err != nil {
			t.Fatalf("SelectAction: %v", err)
		}
		if a == 1 {
			hits++
		}
	}
	if hits < 180 {
		t.Fatalf("best arm chosen %d/200 times", hits)
	}
}

func TestSoftmaxIgnoresBadFeedback(t *testing.T) {
	s := NewSoftmax(2, 1, nil)
	s.Observe(5, 1)
	s.Observe(0, math.NaN())
	if v := s.Values(); v[0] != 0 || v[1] != 0 {
		t.Fatalf("values changed: %v", v)
	}
}

func TestSLMParsesReplies(t *testing.T) {
	cases := []struct {
		reply string
		want  int
	}{
		{"urgent", 2},
		{"  Less_Urgent.\n", 3},
		{"4", 4},
		{"I would pick emergent here", 1},
		{"`non_urgent`", 4},
	}
	for _, tc := range cases {
		fc := &fakeCompleter{reply: tc.reply}
		s := NewSLM(fc, "test-model", labels, nil)
		got, err := s.SelectAction(context.Background(), []float64{0.5, 1})
		if err != nil {
			t.Fatalf("SelectAction(%q): %v", tc.reply, err)
		}
		if got != tc.want {
			t.Errorf("reply %q -> %d, want %d", tc.reply, got, tc.want)
		}
		if s.Fallbacks() != 0 {
			t.Errorf("reply %q used the fallback", tc.reply)
		}
	}
}

func TestSLMFallsBack(t *testing.T) {
	seed := int64(3)
	fc := &fakeCompleter{err: errors.New("rate limited")}
	s := NewSLM(fc, "m", labels, &seed)

	a, err := s.SelectAction(context.Background(), nil)
	if err != nil {
		t.Fatalf("SelectAction: %v", err)
	}
	if a < 0 || a >= len(labels) {
		t.Fatalf("fallback action %d out of range", a)
	}

	fc.err = nil
	fc.reply = "something else entirely"
	if _, err := s.SelectAction(context.Background(), nil); err != nil {
		t.Fatalf("SelectAction: %v", err)
	}
	if s.Fallbacks() != 2 {
		t.Fatalf("Fallbacks = %d, want 2", s.Fallbacks())
	}
}

func TestSLMPromptCarriesHistory(t *testing.T) {
	fc := &fakeCompleter{reply: "urgent"}
	s := NewSLM(fc, "m", labels, nil)
	for i := 0; i < 8; i++ {
		s.Observe(2, float64(i))
	}
	if _, err := s.SelectAction(context.Background(), []float64{0.25}); err != nil {
		t.Fatalf("SelectAction: %v", err)
	}
	if len(s.history) != slmHistory {
		t.Fatalf("history length = %d", len(s.history))
	}
	for _, want := range []string{"0: resuscitation", "0.250", "urgent -> 7.000"} {
		if !strings.Contains(fc.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, fc.prompt)
		}
	}
}

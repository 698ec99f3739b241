package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedClassifier replies with a fixed output (or error) and records prompts.
type scriptedClassifier struct {
	out     string
	err     error
	prompts []string
}

func (s *scriptedClassifier) Name() string { return "scripted" }

func (s *scriptedClassifier) Complete(_ context.Context, prompt string, _ CompletionOpts) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bare", `{"same": true}`, `{"same": true}`},
		{"json fence", "```json\n{\"same\": true}\n```", `{"same": true}`},
		{"plain fence", "```\n{\"same\": true}\n```", `{"same": true}`},
		{"prose around", `Sure! {"same": false} Hope this helps.`, `{"same": false}`},
		{"no json", "I cannot answer", "I cannot answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLLMCheckClient(t *testing.T) {
	c := &scriptedClassifier{out: "```json\n{\"same\": true}\n```"}
	l := NewLLM(c, 0)
	same, err := l.CheckClient(context.Background(), "Tech Corp", "TechCorp Inc")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !same {
		t.Error("expected same")
	}
	if !strings.Contains(c.prompts[0], "Tech Corp") || !strings.Contains(c.prompts[0], "TechCorp Inc") {
		t.Errorf("prompt missing labels: %q", c.prompts[0])
	}
}

func TestLLMCheckMalformed(t *testing.T) {
	for _, out := range []string{"yes they are", `{"verdict": true}`, ""} {
		l := NewLLM(&scriptedClassifier{out: out}, 0)
		if _, err := l.CheckProject(context.Background(), "a", "b"); err == nil {
			t.Errorf("expected error for output %q", out)
		}
	}
}

func TestLLMCheckClassifierError(t *testing.T) {
	l := NewLLM(&scriptedClassifier{err: errors.New("timeout")}, 0)
	if _, err := l.CheckClient(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := l.CheckDescriptions(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLLMCheckDescriptions(t *testing.T) {
	tests := []struct {
		name       string
		out        string
		d1, d2     string
		wantUpdate bool
		wantSame   bool
		wantDesc   string
	}{
		{
			name:     "same task keeps longer",
			out:      `{"areSameTask": true, "shouldCombine": false, "explanation": "same"}`,
			d1:       "- Fix login",
			d2:       "- Fix login redirect bug",
			wantSame: true,
			wantDesc: "- Fix login redirect bug",
		},
		{
			name:     "same task tie keeps first",
			out:      `{"areSameTask": true}`,
			d1:       "- abc",
			d2:       "- xyz",
			wantSame: true,
			wantDesc: "- abc",
		},
		{
			name:       "progressing work",
			out:        `{"areSameTask": false, "shouldCombine": true, "combinedDescription": "- Designed schema, implemented indexing"}`,
			d1:         "- Design schema",
			d2:         "- Implement indexing",
			wantUpdate: true,
			wantDesc:   "- Designed schema, implemented indexing",
		},
		{
			name: "combine without text is unrelated",
			out:  `{"areSameTask": false, "shouldCombine": true, "combinedDescription": "  "}`,
			d1:   "- a",
			d2:   "- b",
		},
		{
			name: "unrelated",
			out:  `{"areSameTask": false, "shouldCombine": false, "explanation": "different"}`,
			d1:   "- a",
			d2:   "- b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLLM(&scriptedClassifier{out: tt.out}, 0)
			got, err := l.CheckDescriptions(context.Background(), tt.d1, tt.d2)
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if got.ShouldUpdate != tt.wantUpdate {
				t.Errorf("ShouldUpdate = %v, want %v", got.ShouldUpdate, tt.wantUpdate)
			}
			if got.SameTask != tt.wantSame {
				t.Errorf("SameTask = %v, want %v", got.SameTask, tt.wantSame)
			}
			if got.UpdatedDescription != tt.wantDesc {
				t.Errorf("UpdatedDescription = %q, want %q", got.UpdatedDescription, tt.wantDesc)
			}
		})
	}
}

func TestLLMCheckDescriptionsMissingVerdict(t *testing.T) {
	l := NewLLM(&scriptedClassifier{out: `{"explanation": "hmm"}`}, 0)
	if _, err := l.CheckDescriptions(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected error when areSameTask is missing")
	}
}

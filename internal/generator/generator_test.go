package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ahrav/go-synth/internal/domain"
	llmerrors "github.com/ahrav/go-synth/internal/llm/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubCompleter answers by model with a per-model function.
type stubCompleter struct {
	mu       sync.Mutex
	calls    []domain.ModelID
	prompts  []string
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	respond  func(model domain.ModelID, prompt string) (string, error)
}

func (s *stubCompleter) Complete(ctx context.Context, in domain.CompletionInput) (*domain.CompletionOutput, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, in.Model)
	s.prompts = append(s.prompts, in.Prompt)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	content, err := s.respond(in.Model, in.Prompt)
	if err != nil {
		return nil, err
	}
	return &domain.CompletionOutput{Model: in.Model, Content: content}, nil
}

func subjectBatch(instructions ...Instruction) Batch {
	return Batch{
		Name:   "subjects",
		Prompt: "Sub-category of {{main_category}}: {{sub_category}}\nDescription: {{description}}",
		Schema: Schema{
			{Name: "subject", Type: String},
			{Name: "description", Type: String},
		},
		Instructions: instructions,
		Models:       []domain.ModelID{domain.ModelGPT4oMini, domain.ModelGPT4o, domain.ModelSonnet35Router},
	}
}

func instr(sub string) Instruction {
	return Instruction{"main_category": "Finance", "sub_category": sub, "description": "about " + sub}
}

func TestGenerator_OrderAndRendering(t *testing.T) {
	stub := &stubCompleter{respond: func(_ domain.ModelID, prompt string) (string, error) {
		first := strings.SplitN(prompt, "\n", 2)[0]
		return fmt.Sprintf(`{"subject": %q, "description": "d"}`, first), nil
	}}
	stub.delay = 5 * time.Millisecond

	var batch []Instruction
	for i := 0; i < 20; i++ {
		batch = append(batch, instr(fmt.Sprintf("s%02d", i)))
	}

	res, err := New(stub, WithConcurrency(4)).Generate(context.Background(), subjectBatch(batch...))
	require.NoError(t, err)
	require.Len(t, res.Records, 20)
	for i, rec := range res.Records {
		assert.Equal(t, fmt.Sprintf("Sub-category of Finance: s%02d", i), rec["subject"])
	}
	assert.Equal(t, 0, res.Skips.Total())
	assert.LessOrEqual(t, stub.peak.Load(), int32(4))

	assert.Contains(t, stub.prompts[0], "Description: about s")
	assert.Contains(t, stub.prompts[0], `"subject" (string)`)
}

func TestGenerator_ModelFallbackOrder(t *testing.T) {
	stub := &stubCompleter{respond: func(model domain.ModelID, _ string) (string, error) {
		switch model {
		case domain.ModelGPT4oMini:
			return "", errors.New("upstream 503")
		case domain.ModelGPT4o:
			return "I cannot produce JSON today", nil
		default:
			return "```json\n{\"subject\": \"Invoices\", \"description\": \"totals\"}\n```", nil
		}
	}}

	res, err := New(stub).Generate(context.Background(), subjectBatch(instr("a")))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Invoices", res.Records[0]["subject"])
	assert.Equal(t,
		[]domain.ModelID{domain.ModelGPT4oMini, domain.ModelGPT4o, domain.ModelSonnet35Router},
		stub.calls)
}

func TestGenerator_FirstSuccessStops(t *testing.T) {
	stub := &stubCompleter{respond: func(domain.ModelID, string) (string, error) {
		return `{"subject": "s", "description": "d"}`, nil
	}}
	_, err := New(stub).Generate(context.Background(), subjectBatch(instr("a")))
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelID{domain.ModelGPT4oMini}, stub.calls)
}

func TestGenerator_FailedInstructionsAreDropped(t *testing.T) {
	stub := &stubCompleter{respond: func(_ domain.ModelID, prompt string) (string, error) {
		if strings.Contains(prompt, ": bad") {
			return "", errors.New("boom")
		}
		return `{"subject": "ok", "description": "d"}`, nil
	}}

	res, err := New(stub).Generate(context.Background(), subjectBatch(instr("good"), instr("bad"), instr("fine")))
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, 1, res.Skips.Count(domain.SkipGenerationFailed))
}

func TestGenerator_AllFailed(t *testing.T) {
	stub := &stubCompleter{respond: func(domain.ModelID, string) (string, error) {
		return "no json here", nil
	}}
	res, err := New(stub).Generate(context.Background(), subjectBatch(instr("a"), instr("b")))
	require.ErrorIs(t, err, ErrAllFailed)
	assert.ErrorIs(t, err, llmerrors.ErrMalformedOutput)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Skips.Count(domain.SkipGenerationFailed))
}

func TestGenerator_EmptyBatch(t *testing.T) {
	stub := &stubCompleter{respond: func(domain.ModelID, string) (string, error) { return "", nil }}
	res, err := New(stub).Generate(context.Background(), subjectBatch())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Empty(t, stub.calls)
}

func TestGenerator_InvalidBatch(t *testing.T) {
	stub := &stubCompleter{respond: func(domain.ModelID, string) (string, error) { return "", nil }}
	gen := New(stub)

	tests := []struct {
		name   string
		mutate func(*Batch)
		want   error
	}{
		{"no models", func(b *Batch) { b.Models = nil }, llmerrors.ErrNoCandidates},
		{"bad model id", func(b *Batch) { b.Models = []domain.ModelID{"gpt-4o"} }, domain.ErrInvalidModelID},
		{"empty prompt", func(b *Batch) { b.Prompt = "" }, ErrEmptyPrompt},
		{"empty schema", func(b *Batch) { b.Schema = nil }, ErrEmptySchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := subjectBatch(instr("a"))
			tt.mutate(&b)
			_, err := gen.Generate(context.Background(), b)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, stub.calls)
}

func TestGenerator_MissingVariableFailsInstruction(t *testing.T) {
	stub := &stubCompleter{respond: func(domain.ModelID, string) (string, error) {
		return `{"subject": "s", "description": "d"}`, nil
	}}
	res, err := New(stub).Generate(context.Background(),
		subjectBatch(instr("a"), Instruction{"main_category": "Finance"}))
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, domain.ErrMissingVariable)
	assert.Contains(t, res.Failures[0].Err.Error(), "description, sub_category")
	assert.Len(t, stub.calls, 1, "an instruction missing variables never reaches a model")
}

func TestInstruction_Missing(t *testing.T) {
	vars := domain.Placeholders("{{subject}} {{description}} {{context}}")
	assert.Empty(t, Instruction{"subject": "s", "description": "d", "context": ""}.Missing(vars))
	assert.Equal(t, []string{"context", "subject"}, Instruction{"description": "d"}.Missing(vars))
}

func TestGenerator_Cancellation(t *testing.T) {
	stub := &stubCompleter{
		delay:   time.Second,
		respond: func(domain.ModelID, string) (string, error) { return `{"subject":"s","description":"d"}`, nil },
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(stub).Generate(ctx, subjectBatch(instr("a"), instr("b"), instr("c")))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

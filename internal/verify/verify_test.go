package verify_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/verbalis/verbalis/internal/verify"
	"github.com/verbalis/verbalis/pkg/provider/llm"
	"github.com/verbalis/verbalis/pkg/provider/llm/mock"
)

func TestVerifyLocal_Accept(t *testing.T) {
	t.Parallel()

	d := verify.NewDispatcher(nil)

	res, err := d.Verify(context.Background(), "i would like a coffee", "I would like a coffee, please!", "spanish")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !res.Accept {
		t.Error("Verify() Accept = false, want true")
	}
	if res.Confidence <= 0 {
		t.Errorf("Verify() Confidence = %v, want > 0", res.Confidence)
	}
	if !strings.Contains(res.Feedback, "%") {
		t.Errorf("Verify() Feedback = %q, want match percentage", res.Feedback)
	}
}

func TestVerifyLocal_Reject(t *testing.T) {
	t.Parallel()

	d := verify.NewDispatcher(nil)

	res, err := d.Verify(context.Background(), "goodbye", "Good morning", "french")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Accept {
		t.Error("Verify() Accept = true, want false")
	}
}

func TestVerifyLocal_NearMissFeedback(t *testing.T) {
	t.Parallel()

	d := verify.NewDispatcher(nil)

	res, err := d.Verify(context.Background(), "i would like a", "I would like a big cup of coffee.", "french")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Accept {
		t.Fatal("Verify() Accept = true, want false")
	}
	if !strings.Contains(res.Feedback, "close") {
		t.Errorf("Verify() Feedback = %q, want a near-miss hint", res.Feedback)
	}
}

func TestVerifyLocal_NeverCallsJudge(t *testing.T) {
	t.Parallel()

	judge := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `{"is_match": true, "feedback": "ok"}`}}
	d := verify.NewDispatcher(judge)

	if _, err := d.Verify(context.Background(), "hola", "Hola", "spanish"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if judge.CallCount() != 0 {
		t.Errorf("judge called %d times for locally verified language, want 0", judge.CallCount())
	}
}

func TestVerifyAI_Accept(t *testing.T) {
	t.Parallel()

	judge := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "```json\n{\"is_match\": true, \"feedback\": \"よくできました！\"}\n```",
	}}
	d := verify.NewDispatcher(judge)

	res, err := d.Verify(context.Background(), "すしをたべます", "寿司を食べます", "japanese")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !res.Accept {
		t.Error("Verify() Accept = false, want true")
	}
	if res.Feedback != "よくできました！" {
		t.Errorf("Verify() Feedback = %q", res.Feedback)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Verify() Confidence = %v, want 1.0", res.Confidence)
	}
	if judge.CallCount() != 1 {
		t.Errorf("judge called %d times, want 1", judge.CallCount())
	}
}

func TestVerifyAI_Reject(t *testing.T) {
	t.Parallel()

	judge := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"is_match": false, "feedback": "Almost! Try the second word again."}`,
	}}
	d := verify.NewDispatcher(judge)

	res, err := d.Verify(context.Background(), "annyeong", "안녕하세요", "korean")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Accept {
		t.Error("Verify() Accept = true, want false")
	}
	if res.Confidence != 0 {
		t.Errorf("Verify() Confidence = %v, want 0", res.Confidence)
	}
}

func TestVerifyAI_JudgeErrorIsHardFailure(t *testing.T) {
	t.Parallel()

	judge := &mock.Provider{CompleteErr: errors.New("upstream timeout")}
	d := verify.NewDispatcher(judge)

	res, err := d.Verify(context.Background(), "nihao", "你好", "chinese")
	if err == nil {
		t.Fatal("Verify() error = nil, want judge failure")
	}
	if res.Accept {
		t.Error("Verify() Accept = true on judge failure, want false")
	}
}

func TestVerifyAI_UnparseableVerdictIsHardFailure(t *testing.T) {
	t.Parallel()

	judge := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Sounds great, keep going!"}}
	d := verify.NewDispatcher(judge)

	if _, err := d.Verify(context.Background(), "nihao", "你好", "chinese"); err == nil {
		t.Fatal("Verify() error = nil, want parse failure")
	}
}

func TestVerifyAI_ChinesePromptIsLenient(t *testing.T) {
	t.Parallel()

	judge := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `{"is_match": true, "feedback": "好"}`}}
	d := verify.NewDispatcher(judge)

	if _, err := d.Verify(context.Background(), "wo xiang he kafei", "我想喝咖啡", "chinese"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	prompt := judge.CompleteCalls[0].Req.Messages[0].Content
	if !strings.Contains(prompt, "lenient") {
		t.Errorf("chinese judge prompt missing leniency instruction:\n%s", prompt)
	}
}

func TestVerifyAI_NoJudgeConfigured(t *testing.T) {
	t.Parallel()

	d := verify.NewDispatcher(nil)
	if _, err := d.Verify(context.Background(), "a", "b", "japanese"); err == nil {
		t.Fatal("Verify() error = nil, want missing judge error")
	}
}

func TestCanSkip(t *testing.T) {
	t.Parallel()

	d := verify.NewDispatcher(nil)

	tests := []struct {
		name     string
		language string
		attempts int
		want     bool
	}{
		{"chinese at threshold", "chinese", 3, true},
		{"chinese above threshold", "Chinese", 5, true},
		{"chinese below threshold", "chinese", 2, false},
		{"japanese never skips", "japanese", 10, false},
		{"spanish never skips", "spanish", 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := d.CanSkip(tt.language, tt.attempts); got != tt.want {
				t.Errorf("CanSkip(%q, %d) = %v, want %v", tt.language, tt.attempts, got, tt.want)
			}
		})
	}
}

func TestCanSkip_CustomThreshold(t *testing.T) {
	t.Parallel()

	d := verify.NewDispatcher(nil, verify.WithSkipAfterAttempts(1))
	if !d.CanSkip("chinese", 1) {
		t.Error("CanSkip() = false with threshold 1 and 1 attempt, want true")
	}
}

func TestVerifyLocal_CustomThresholds(t *testing.T) {
	t.Parallel()

	// With an extreme word-match threshold a near-match stops passing.
	strict := verify.NewDispatcher(nil,
		verify.WithSimilarityThreshold(0.99),
		verify.WithWordMatchThreshold(1.0),
	)
	res, err := strict.Verify(context.Background(), "i would like a coffee", "I would like a coffee, please!", "english")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Accept {
		t.Error("Verify() Accept = true under strict thresholds, want false")
	}
}

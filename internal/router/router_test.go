package router

import (
	"context"
	"reflect"
	"testing"
)

func TestStaticRouting(t *testing.T) {
	r := New("static", "", nil)
	ctx := context.Background()

	d := r.Route(ctx, "coding")
	if d.Model != "qwen2.5-coder:14b" || d.Tier != "slow" {
		t.Errorf("coding routed to %+v", d)
	}
	if d.TokenBudget != 4096 {
		t.Errorf("coding budget = %d, expansive override expected", d.TokenBudget)
	}
	if !reflect.DeepEqual(d.Fallbacks, []string{"qwen2.5-coder:7b", "llama3.1:8b", "llama3.2:3b"}) {
		t.Errorf("fallbacks = %v", d.Fallbacks)
	}

	d = r.Route(ctx, "general_chat")
	if d.Model != "llama3.2:3b" || d.TokenBudget != 512 {
		t.Errorf("general_chat routed to %+v", d)
	}

	// Unknown categories take the 8B default.
	d = r.Route(ctx, "underwater_basket_weaving")
	if d.Model != "llama3.1:8b" || d.TokenBudget != 1024 {
		t.Errorf("default route = %+v", d)
	}
	if !reflect.DeepEqual(d.Fallbacks, []string{"llama3.2:3b"}) {
		t.Errorf("default fallbacks = %v", d.Fallbacks)
	}
}

func TestDynamicRouting(t *testing.T) {
	r := New("dynamic", "", nil)
	ctx := context.Background()

	d := r.Route(ctx, "skill_writing")
	if d.Model != "qwen2.5-coder:14b" || d.Tier != "14b_direct" || d.CanEscalate() {
		t.Errorf("skill_writing = %+v", d)
	}
	if d.TokenBudget != 4096 {
		t.Errorf("skill_writing budget = %d, expansive override expected", d.TokenBudget)
	}
	if d.ContextWindow != 8192 {
		t.Errorf("14b_direct ctx = %d", d.ContextWindow)
	}

	d = r.Route(ctx, "summarization")
	if d.Model != "llama3.2:3b" || d.Tier != "3b" || d.CanEscalate() {
		t.Errorf("summarization = %+v", d)
	}

	d = r.Route(ctx, "debugging")
	if d.Model != "qwen2.5-coder:7b" || d.EscalationTarget != "qwen2.5-coder:14b" {
		t.Errorf("debugging = %+v", d)
	}
	if d.Tier != "8b_with_escalation" || d.ContextWindow != 6144 {
		t.Errorf("debugging tier = %+v", d)
	}
	// Expansive override beats the tier budget.
	if d.TokenBudget != 3000 {
		t.Errorf("debugging budget = %d", d.TokenBudget)
	}

	d = r.Route(ctx, "web_search")
	if d.Model != "llama3.1:8b" || d.Tier != "8b" || d.CanEscalate() {
		t.Errorf("web_search = %+v", d)
	}
	if d.TokenBudget != 1024 {
		t.Errorf("web_search budget = %d", d.TokenBudget)
	}

	d = r.Route(ctx, "creative_writing")
	if d.Model != "llama3.2:3b" || d.EscalationTarget != "llama3.1:8b" {
		t.Errorf("creative_writing = %+v", d)
	}

	d = r.Route(ctx, "some_new_category")
	if d.Tier != "3b_with_escalation" || d.TokenBudget != 600 {
		t.Errorf("dynamic default = %+v", d)
	}
}

func TestFallbackFiltering(t *testing.T) {
	installed := func(context.Context) []string {
		return []string{"qwen2.5-coder:14b", "llama3.1:8b", "llama3.2:3b"}
	}
	r := New("static", "", installed)

	d := r.Route(context.Background(), "coding")
	if !reflect.DeepEqual(d.Fallbacks, []string{"llama3.1:8b", "llama3.2:3b"}) {
		t.Errorf("filtered fallbacks = %v", d.Fallbacks)
	}

	// Unknown installed set leaves the chain untouched.
	open := New("static", "", func(context.Context) []string { return nil })
	d = open.Route(context.Background(), "coding")
	if len(d.Fallbacks) != 3 {
		t.Errorf("unfiltered fallbacks = %v", d.Fallbacks)
	}
}

func TestBackgroundPinsToSmallModel(t *testing.T) {
	r := New("dynamic", "", nil)
	d := r.Background(context.Background())
	if d.Model != "llama3.2:3b" || d.TokenBudget != 1000 || d.ContextWindow != 4096 {
		t.Errorf("background = %+v", d)
	}
	if !reflect.DeepEqual(d.Fallbacks, []string{"qwen2.5:3b"}) {
		t.Errorf("background fallbacks = %v", d.Fallbacks)
	}
}

func TestBackgroundModelOverride(t *testing.T) {
	r := New("dynamic", "phi4-mini:3.8b", nil)
	d := r.Background(context.Background())
	if d.Model != "phi4-mini:3.8b" {
		t.Errorf("background model = %q, want the configured override", d.Model)
	}
	if d.Tier != "background" || d.TokenBudget != 1000 {
		t.Errorf("override changed more than the model: %+v", d)
	}
}

func TestCheckEscalation(t *testing.T) {
	reason, ok := CheckEscalation("I tried but ESCALATE: this needs deeper reasoning about the proof")
	if !ok || reason != "this needs deeper reasoning about the proof" {
		t.Errorf("reason = %q, ok = %v", reason, ok)
	}
	if _, ok := CheckEscalation("FINAL: all done"); ok {
		t.Error("no escalation expected")
	}
}

func TestEscalationTargetFor(t *testing.T) {
	target, ok := EscalationTargetFor("qwen2.5-coder:7b")
	if !ok || target != "qwen2.5-coder:14b" {
		t.Errorf("target = %q", target)
	}
	if _, ok := EscalationTargetFor("llama3.2:3b"); ok {
		t.Error("3b has no escalation sibling")
	}
}

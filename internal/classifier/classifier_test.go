package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &APIError{StatusCode: 429}, true},
		{"server error", &APIError{StatusCode: 500}, true},
		{"gateway timeout", &APIError{StatusCode: 504}, true},
		{"bad request", &APIError{StatusCode: 400}, false},
		{"unauthorized", &APIError{StatusCode: 401}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"plain error", errors.New("boom"), false},
		{"cancelled", context.Canceled, false},
	}
	for _, tc := range cases {
		if got := Transient(tc.err); got != tc.want {
			t.Errorf("%s: Transient = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCostCents(t *testing.T) {
	// 1M input at $0.30 + 1M output at $2.50 = $2.80 = 280 cents.
	if got := CostCents(1_000_000, 1_000_000, "gemini-2.5-flash"); got != 280 {
		t.Errorf("flash cost = %v, want 280", got)
	}
	// Lite pricing: $0.10 / $0.40 per 1M.
	if got := CostCents(1_000_000, 1_000_000, "gemini-2.5-flash-lite"); got != 50 {
		t.Errorf("lite cost = %v, want 50", got)
	}
	if got := CostCents(0, 0, "gemini-2.5-flash"); got != 0 {
		t.Errorf("zero tokens cost = %v", got)
	}
}

func TestKeyPoolRoundRobinUnlimited(t *testing.T) {
	pool := NewKeyPool([]string{"k0", "k1", "k2"}, 0)

	if pool.Size() != 3 {
		t.Fatalf("size = %d", pool.Size())
	}
	// With no rate limit every worker keeps its own key.
	for worker := 0; worker < 3; worker++ {
		key, err := pool.Acquire(context.Background(), worker)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if key.Index != worker {
			t.Errorf("worker %d got key %d", worker, key.Index)
		}
	}
}

func TestKeyPoolSwapsWhenSaturated(t *testing.T) {
	pool := NewKeyPool([]string{"k0", "k1"}, 2)

	// Exhaust key 0's window.
	for i := 0; i < 2; i++ {
		if _, err := pool.Acquire(context.Background(), 0); err != nil {
			t.Fatalf("acquire: %v", err)
		}
	}

	key, err := pool.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if key.Index != 1 {
		t.Errorf("saturated worker got key %d, want swap to 1", key.Index)
	}
}

func TestKeyPoolBlocksUntilCancelled(t *testing.T) {
	pool := NewKeyPool([]string{"k0"}, 1)
	if _, err := pool.Acquire(context.Background(), 0); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := pool.Acquire(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Error("acquire returned before the context expired")
	}
}

func TestKeyPartial(t *testing.T) {
	k := Key{Secret: "AIzaSyA-abcdefgh-1234"}
	got := k.Partial()
	if got != "AIza...1234" {
		t.Errorf("partial = %q", got)
	}
	short := Key{Secret: "tiny"}
	if short.Partial() != "****" {
		t.Errorf("short partial = %q", short.Partial())
	}
}

func TestParseAnnotations(t *testing.T) {
	content := "```json\n[{\"category\": \"Box Truck\", \"confidence\": 80}, {\"category\": \"Dually\", \"confidence\": 95}]\n```"
	anns, err := parseAnnotations(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(anns) != 2 {
		t.Fatalf("got %d annotations", len(anns))
	}
	if anns[0].Category != "Dually" {
		t.Errorf("top annotation = %q, want highest confidence first", anns[0].Category)
	}
}

func TestParseAnnotationsCapsAtThree(t *testing.T) {
	content := `[{"category":"A","confidence":1},{"category":"B","confidence":2},{"category":"C","confidence":3},{"category":"D","confidence":4}]`
	anns, err := parseAnnotations(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(anns) != 3 {
		t.Fatalf("got %d annotations, want 3", len(anns))
	}
	if anns[0].Category != "D" {
		t.Errorf("top = %q", anns[0].Category)
	}
}

func TestParseAnnotationsRejectsProse(t *testing.T) {
	if _, err := parseAnnotations("I cannot classify this listing."); err == nil {
		t.Error("prose answer must fail to parse")
	}
}

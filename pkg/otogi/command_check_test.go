package otogi

import (
	"context"
	"errors"
	"testing"
)

func TestEvaluateCommandChecks(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	allow := CommandCheckFunc(func(context.Context, *Event) (bool, error) { return true, nil })
	deny := CommandCheckFunc(func(context.Context, *Event) (bool, error) { return false, nil })
	fail := CommandCheckFunc(func(context.Context, *Event) (bool, error) { return false, errBoom })

	tests := []struct {
		name      string
		checks    func(calls *int) []CommandCheck
		wantAllow bool
		wantErr   error
		wantCalls int
	}{
		{
			name:      "no checks allow",
			checks:    func(*int) []CommandCheck { return nil },
			wantAllow: true,
		},
		{
			name: "all allow",
			checks: func(calls *int) []CommandCheck {
				return []CommandCheck{counting(calls, allow), counting(calls, allow)}
			},
			wantAllow: true,
			wantCalls: 2,
		},
		{
			name: "first denial short circuits",
			checks: func(calls *int) []CommandCheck {
				return []CommandCheck{counting(calls, deny), counting(calls, allow)}
			},
			wantCalls: 1,
		},
		{
			name: "error stops evaluation",
			checks: func(calls *int) []CommandCheck {
				return []CommandCheck{counting(calls, allow), counting(calls, fail), counting(calls, allow)}
			},
			wantErr:   errBoom,
			wantCalls: 2,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			allowed, err := EvaluateCommandChecks(context.Background(), testCase.checks(&calls), &Event{})
			if allowed != testCase.wantAllow {
				t.Fatalf("allowed = %v, want %v", allowed, testCase.wantAllow)
			}
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("error = %v, want %v", err, testCase.wantErr)
			}
			if calls != testCase.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, testCase.wantCalls)
			}
		})
	}
}

func TestActorIDCheck(t *testing.T) {
	t.Parallel()

	check := ActorIDCheck("42", "")
	allowed, err := check.Check(context.Background(), &Event{Actor: Actor{ID: "42"}})
	if err != nil || !allowed {
		t.Fatalf("check(42) = (%v, %v), want (true, nil)", allowed, err)
	}
	allowed, err = check.Check(context.Background(), &Event{Actor: Actor{ID: ""}})
	if err != nil || allowed {
		t.Fatalf("check(empty) = (%v, %v), want (false, nil)", allowed, err)
	}
}

func counting(calls *int, check CommandCheck) CommandCheck {
	return CommandCheckFunc(func(ctx context.Context, event *Event) (bool, error) {
		*calls++
		return check.Check(ctx, event)
	})
}

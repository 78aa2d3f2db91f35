package notifier

import (
	"errors"
	"testing"
	"time"
)

// mockNotifier is a test helper that implements Notifier interface
type mockNotifier struct {
	changes     []ModeChange
	closeErr    error
	closeCalled bool
}

func (m *mockNotifier) SendModeChange(change ModeChange) {
	m.changes = append(m.changes, change)
}

func (m *mockNotifier) Close() error {
	m.closeCalled = true
	return m.closeErr
}

func TestNewMultiNotifier_FiltersNil(t *testing.T) {
	mock1 := &mockNotifier{}
	mock2 := &mockNotifier{}

	mn := NewMultiNotifier(mock1, nil, mock2, nil)

	if mn.Count() != 2 {
		t.Errorf("expected 2 notifiers, got %d", mn.Count())
	}
}

func TestMultiNotifier_SendModeChange(t *testing.T) {
	mock1 := &mockNotifier{}
	mock2 := &mockNotifier{}

	mn := NewMultiNotifier(mock1, mock2)

	mn.SendModeChange(ModeChange{
		AttemptID: "a-1",
		Kind:      ChangeKindSwitched,
		From:      "sandbox",
		To:        "production",
		Timestamp: time.Now(),
	})

	if len(mock1.changes) != 1 || len(mock2.changes) != 1 {
		t.Fatalf("expected one change per notifier, got %d and %d", len(mock1.changes), len(mock2.changes))
	}
	if mock1.changes[0].AttemptID != "a-1" {
		t.Errorf("unexpected attempt id: %s", mock1.changes[0].AttemptID)
	}
}

func TestMultiNotifier_SendModeChange_NoNotifiers(t *testing.T) {
	mn := NewMultiNotifier()

	// Should not panic
	mn.SendModeChange(ModeChange{To: "sandbox"})
}

func TestMultiNotifier_Close_WithError(t *testing.T) {
	expectedErr := errors.New("close error")
	mock1 := &mockNotifier{closeErr: expectedErr}
	mock2 := &mockNotifier{}

	mn := NewMultiNotifier(mock1, mock2)

	err := mn.Close()

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	// Both should still be called
	if !mock1.closeCalled || !mock2.closeCalled {
		t.Error("expected every notifier to be closed")
	}
}

func TestMultiNotifier_Count(t *testing.T) {
	tests := []struct {
		name      string
		notifiers []Notifier
		expected  int
	}{
		{"empty", []Notifier{}, 0},
		{"one", []Notifier{&mockNotifier{}}, 1},
		{"with nils", []Notifier{&mockNotifier{}, nil, &mockNotifier{}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mn := NewMultiNotifier(tt.notifiers...)
			if mn.Count() != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, mn.Count())
			}
		})
	}
}

func TestModeChange_IsProduction(t *testing.T) {
	if !(ModeChange{To: "production"}).IsProduction() {
		t.Error("expected production change")
	}
	if (ModeChange{To: "sandbox"}).IsProduction() {
		t.Error("sandbox is not production")
	}
}

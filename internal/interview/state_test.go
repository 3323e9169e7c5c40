package interview

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{name: "start from not started", from: StatusNotStarted, event: EventStart, want: StatusInProgress},
		{name: "submit while in progress", from: StatusInProgress, event: EventSubmit, want: StatusInProgress},
		{name: "complete while in progress", from: StatusInProgress, event: EventComplete, want: StatusCompleted},
		{name: "submit before start", from: StatusNotStarted, event: EventSubmit, wantErr: true},
		{name: "complete before start", from: StatusNotStarted, event: EventComplete, wantErr: true},
		{name: "start twice", from: StatusInProgress, event: EventStart, wantErr: true},
		{name: "submit after completion", from: StatusCompleted, event: EventSubmit, wantErr: true},
		{name: "complete twice", from: StatusCompleted, event: EventComplete, wantErr: true},
		{name: "restart completed", from: StatusCompleted, event: EventStart, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Transition(tt.from, tt.event)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				if got != tt.from {
					t.Fatalf("expected status to stay %s, got %s", tt.from, got)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

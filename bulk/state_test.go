package bulk

import "testing"

func TestStateManagerStartsIdle(t *testing.T) {
	sm := NewStateManager()
	if sm.GetState() != Idle {
		t.Errorf("initial state = %v, want Idle", sm.GetState())
	}
}

func TestStateManagerLegalTransitions(t *testing.T) {
	sm := NewStateManager()
	if err := sm.TransitionTo(Running, nil); err != nil {
		t.Fatalf("Idle->Running: %v", err)
	}
	if err := sm.TransitionTo(Draining, nil); err != nil {
		t.Fatalf("Running->Draining: %v", err)
	}
	if err := sm.TransitionTo(Closed, nil); err != nil {
		t.Fatalf("Draining->Closed: %v", err)
	}
}

func TestStateManagerIdleToDrainingDirectlyIsLegal(t *testing.T) {
	sm := NewStateManager()
	if err := sm.TransitionTo(Draining, nil); err != nil {
		t.Fatalf("Idle->Draining: %v", err)
	}
}

func TestStateManagerRejectsIllegalTransition(t *testing.T) {
	sm := NewStateManager()
	if err := sm.TransitionTo(Closed, nil); err == nil {
		t.Fatal("expected error transitioning Idle->Closed directly")
	}
}

func TestStateManagerRejectsTransitionFromClosed(t *testing.T) {
	sm := NewStateManager()
	sm.TransitionTo(Draining, nil)
	sm.TransitionTo(Closed, nil)
	if err := sm.TransitionTo(Running, nil); err == nil {
		t.Fatal("expected error transitioning out of Closed")
	}
}

func TestStateManagerNotifiesHandlers(t *testing.T) {
	sm := NewStateManager()
	var got []StateTransition
	sm.OnStateChange(func(tr StateTransition) { got = append(got, tr) })

	sm.TransitionTo(Running, nil)
	sm.TransitionTo(Draining, nil)

	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].From != Idle || got[0].To != Running {
		t.Errorf("got[0] = %+v, want Idle->Running", got[0])
	}
	if got[1].From != Running || got[1].To != Draining {
		t.Errorf("got[1] = %+v, want Running->Draining", got[1])
	}
}

func TestExecutorStateString(t *testing.T) {
	cases := map[ExecutorState]string{Idle: "IDLE", Running: "RUNNING", Draining: "DRAINING", Closed: "CLOSED"}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", state, got, want)
		}
	}
}

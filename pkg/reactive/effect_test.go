package reactive

import (
	"sync"
	"testing"
)

func TestLazyEffect(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1}))

	runs := 0
	e := NewEffect(func() any { runs++; return w.Get("a") }, Lazy())
	defer e.Stop()

	if runs != 0 {
		t.Fatalf("lazy effect must not run at creation, runs=%d", runs)
	}

	if got := e.Run(); got != 1 {
		t.Errorf("Run returned %v, want 1", got)
	}
	if runs != 1 {
		t.Fatalf("runs=%d, want 1", runs)
	}

	// Subscriptions were collected by the explicit run.
	w.Set("a", 2)
	if runs != 2 {
		t.Errorf("lazy effect should be reactive after first run, runs=%d", runs)
	}
}

func TestStopEffect(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1}))

	runs := 0
	stopped := 0
	e := NewEffect(func() any { runs++; w.Get("a"); return nil }, OnStop(func() { stopped++ }))

	e.Stop()
	if stopped != 1 {
		t.Fatalf("OnStop should fire once, fired %d times", stopped)
	}
	if e.Active() {
		t.Error("stopped effect should report inactive")
	}

	w.Set("a", 2)
	if runs != 1 {
		t.Errorf("stopped effect must not re-run on triggers, runs=%d", runs)
	}

	e.Stop() // idempotent
	if stopped != 1 {
		t.Errorf("second Stop must not fire OnStop again, fired %d times", stopped)
	}
}

func TestStoppedEffectRunsUntracked(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1}))

	runs := 0
	e := NewEffect(func() any { runs++; return w.Get("a") })
	e.Stop()

	if got := e.Run(); got != 1 {
		t.Errorf("explicit Run of a stopped effect should still compute, got %v", got)
	}
	if runs != 2 {
		t.Fatalf("runs=%d, want 2", runs)
	}

	w.Set("a", 2)
	if runs != 2 {
		t.Errorf("the untracked run must not have resubscribed, runs=%d", runs)
	}
}

func TestEffectResubscribesEachRun(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"which": "a", "a": 1, "b": 2}))

	runs := 0
	e := NewEffect(func() any {
		runs++
		return w.Get(w.Get("which").(string))
	})
	defer e.Stop()

	w.Set("which", "b") // branch flip: now only "which" and "b" matter
	if runs != 2 {
		t.Fatalf("runs=%d, want 2", runs)
	}

	w.Set("a", 10) // stale dependency from the first run
	if runs != 2 {
		t.Errorf("write to abandoned dependency must not re-run, runs=%d", runs)
	}

	w.Set("b", 20)
	if runs != 3 {
		t.Errorf("write to current dependency should re-run, runs=%d", runs)
	}
}

func TestSelfTriggerSuppressed(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"n": 0}))

	runs := 0
	e := NewEffect(func() any {
		runs++
		if runs > 10 {
			t.Fatal("self-trigger loop")
		}
		w.Set("n", w.Get("n").(int)+1)
		return nil
	})
	defer e.Stop()

	if runs != 1 {
		t.Errorf("effect writing its own dependency must not re-enter, runs=%d", runs)
	}
	if w.Get("n") != 1 {
		t.Errorf("n = %v, want 1", w.Get("n"))
	}
}

func TestNestedEffectsRestoreActive(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"outer": 0, "inner": 0}))

	outerRuns, innerRuns := 0, 0
	var inner *Effect
	outer := NewEffect(func() any {
		outerRuns++
		if inner == nil {
			inner = NewEffect(func() any {
				innerRuns++
				w.Get("inner")
				return nil
			})
		}
		w.Get("outer") // read after the nested effect: must bind to outer
		return nil
	})
	defer outer.Stop()
	defer func() { inner.Stop() }()

	w.Set("inner", 1)
	if innerRuns != 2 || outerRuns != 1 {
		t.Errorf("inner write: innerRuns=%d outerRuns=%d", innerRuns, outerRuns)
	}

	w.Set("outer", 1)
	if outerRuns != 2 {
		t.Errorf("outer write should re-run outer effect, outerRuns=%d", outerRuns)
	}
	if innerRuns != 2 {
		t.Errorf("outer write must not re-run inner effect, innerRuns=%d", innerRuns)
	}
}

func TestUntrackedReads(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1, "b": 2}))

	runs := 0
	e := NewEffect(func() any {
		runs++
		w.Get("a")
		Untracked(func() {
			w.Get("b")
		})
		return nil
	})
	defer e.Stop()

	w.Set("b", 3)
	if runs != 1 {
		t.Errorf("untracked read must not subscribe, runs=%d", runs)
	}
	w.Set("a", 2)
	if runs != 2 {
		t.Errorf("tracked read should still subscribe, runs=%d", runs)
	}
}

func TestPauseResumeNesting(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1, "b": 2, "c": 3}))

	runs := 0
	e := NewEffect(func() any {
		runs++
		PauseTracking()
		w.Get("a")
		EnableTracking()
		w.Get("b") // tracked: explicit enable inside a paused region
		ResetTracking()
		w.Get("c") // back to paused
		ResetTracking()
		return nil
	})
	defer e.Stop()

	w.Set("a", 10)
	w.Set("c", 30)
	if runs != 1 {
		t.Errorf("paused reads must not subscribe, runs=%d", runs)
	}
	w.Set("b", 20)
	if runs != 2 {
		t.Errorf("read under explicit enable should subscribe, runs=%d", runs)
	}
}

func TestOnTrackAndOnTrigger(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1}))

	var tracked []TrackEvent
	var triggered []TriggerEvent
	e := NewEffect(func() any { w.Get("a"); return nil },
		OnTrack(func(ev TrackEvent) { tracked = append(tracked, ev) }),
		OnTrigger(func(ev TriggerEvent) { triggered = append(triggered, ev) }),
	)
	defer e.Stop()

	if len(tracked) != 1 {
		t.Fatalf("expected 1 track event, got %d", len(tracked))
	}
	if tracked[0].Kind != TrackGet || tracked[0].Key != "a" {
		t.Errorf("track event = %+v", tracked[0])
	}

	w.Set("a", 2)
	if len(triggered) != 1 {
		t.Fatalf("expected 1 trigger event, got %d", len(triggered))
	}
	ev := triggered[0]
	if ev.Kind != TriggerSet || ev.Key != "a" || ev.NewValue != 2 || ev.OldValue != 1 {
		t.Errorf("trigger event = %+v", ev)
	}
}

func TestEffectPanicRestoresContext(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1}))

	func() {
		defer func() { recover() }()
		NewEffect(func() any {
			w.Get("a")
			panic("boom")
		})
	}()

	tc := currentContext()
	if tc.active != nil {
		t.Error("active effect should be cleared after a panic")
	}
	if len(tc.effectStack) != 0 {
		t.Error("effect stack should be empty after a panic")
	}
	if !tc.shouldTrack {
		t.Error("tracking state should be restored after a panic")
	}

	// The graph is still usable.
	runs := 0
	e := NewEffect(func() any { runs++; w.Get("a"); return nil })
	defer e.Stop()
	w.Set("a", 2)
	if runs != 2 {
		t.Errorf("runs=%d, want 2", runs)
	}
}

func TestEffectIDsAscend(t *testing.T) {
	e1 := NewEffect(func() any { return nil })
	e2 := NewEffect(func() any { return nil })
	defer e1.Stop()
	defer e2.Stop()
	if e2.ID() <= e1.ID() {
		t.Errorf("IDs should ascend with creation order: %d then %d", e1.ID(), e2.ID())
	}
}

func TestTrackingIsolatedPerGoroutine(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1}))

	runs := 0
	e := NewEffect(func() any {
		runs++
		w.Get("a")

		// Reads on another goroutine must not bind to this effect.
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Get("untracked-elsewhere")
		}()
		wg.Wait()
		return nil
	})
	defer e.Stop()

	w.Set("untracked-elsewhere", 1)
	if runs != 1 {
		t.Errorf("cross-goroutine read must not subscribe the effect, runs=%d", runs)
	}
	w.Set("a", 2)
	if runs != 2 {
		t.Errorf("runs=%d, want 2", runs)
	}
}

func TestWithSchedulerDefersRun(t *testing.T) {
	w := mustWrapper(t, Wrap(map[string]any{"a": 1}))

	runs := 0
	var pending []*Effect
	e := NewEffect(
		func() any { runs++; w.Get("a"); return nil },
		WithScheduler(func(e *Effect) { pending = append(pending, e) }),
	)
	defer e.Stop()

	w.Set("a", 2)
	w.Set("a", 3)
	if runs != 1 {
		t.Fatalf("scheduled effect must not run inline, runs=%d", runs)
	}
	if len(pending) != 2 {
		t.Fatalf("scheduler callback should fire per trigger, got %d", len(pending))
	}

	pending[0].Run()
	if runs != 2 {
		t.Errorf("runs=%d, want 2", runs)
	}
}

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

func wrap(t *testing.T, target any) *reactive.Wrapper {
	t.Helper()
	w, ok := reactive.Wrap(target).(*reactive.Wrapper)
	if !ok {
		t.Fatalf("expected wrapper, got %T", target)
	}
	return w
}

func TestDispatcherCoalescesTriggers(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	d := NewDispatcher(s)

	w := wrap(t, map[string]any{"n": 0})

	runs := 0
	e := reactive.NewEffect(func() any {
		runs++
		w.Get("n")
		return nil
	}, d.Option())
	defer e.Stop()

	release := holdFlush(s)
	w.Set("n", 1)
	w.Set("n", 2)
	w.Set("n", 3)
	release()
	wait(t, s.NextTick())

	assert.Equal(t, 2, runs, "burst of writes coalesces into one re-run")
}

func TestDispatcherRunsEffectsInCreationOrder(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	d := NewDispatcher(s)

	w := wrap(t, map[string]any{"a": 0})
	var order []string

	parent := reactive.NewEffect(func() any {
		order = append(order, "parent")
		w.Get("a")
		return nil
	}, d.Option())
	defer parent.Stop()
	child := reactive.NewEffect(func() any {
		order = append(order, "child")
		w.Get("a")
		return nil
	}, d.Option())
	defer child.Stop()

	order = order[:0]
	release := holdFlush(s)
	w.Set("a", 1)
	release()
	wait(t, s.NextTick())

	assert.Equal(t, []string{"parent", "child"}, order,
		"effects created parent-first flush parent-first")
}

func TestDispatcherReleaseStopsQueuedRun(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	d := NewDispatcher(s)

	w := wrap(t, map[string]any{"n": 0})

	runs := 0
	e := reactive.NewEffect(func() any {
		runs++
		w.Get("n")
		return nil
	}, d.Option())

	release := holdFlush(s)
	w.Set("n", 1)
	e.Stop()
	d.Release(e)
	release()
	wait(t, s.NextTick())

	assert.Equal(t, 1, runs, "a released effect's queued job is skipped")
}

func TestDispatcherCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	d := NewDispatcher(s)

	w := wrap(t, map[string]any{"n": 0})

	runs := 0
	e := reactive.NewEffect(func() any {
		runs++
		w.Get("n")
		return nil
	}, d.Option())
	defer e.Stop()

	release := holdFlush(s)
	w.Set("n", 1)
	d.Cancel(e)
	release()
	wait(t, s.NextTick())

	assert.Equal(t, 1, runs, "a cancelled dispatch does not run")
}

func TestDispatcherAllowRecurseConverges(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	d := NewDispatcher(s)

	w := wrap(t, map[string]any{"n": 0})

	runs := 0
	e := reactive.NewEffect(func() any {
		runs++
		n := w.Get("n").(int)
		if n < 3 {
			w.Set("n", n+1)
		}
		return nil
	}, d.Option(), reactive.AllowRecurse())
	defer e.Stop()

	wait(t, s.NextTick())
	// Creation run writes 1, then each flush pass re-runs until n
	// stabilizes at 3 and the final run performs no write.
	assert.Equal(t, 4, runs)
	assert.Equal(t, 3, w.Get("n"))
}

func TestDispatcherRecursionLimitStopsRunaway(t *testing.T) {
	s := NewScheduler()
	defer s.Close()
	d := NewDispatcher(s)

	w := wrap(t, map[string]any{"n": 0})

	runs := 0
	e := reactive.NewEffect(func() any {
		runs++
		w.Set("n", w.Get("n").(int)+1)
		return nil
	}, d.Option(), reactive.AllowRecurse())
	defer e.Stop()

	wait(t, s.NextTick())
	// One creation run, then the per-flush recursion guard cuts the
	// self-perpetuating job off.
	assert.Equal(t, 1+maxRecursionLimit, runs)
}

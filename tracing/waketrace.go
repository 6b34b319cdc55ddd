package tracing

import (
	"fmt"
	"reflect"

	"github.com/kestrel-os/kestrel/defcall"
	"github.com/kestrel-os/kestrel/hooking"
)

// CollectWakeups lets a tracer observe a deferred call scheduler. Each
// pending period of a slot becomes one task, from Set to delivery, so that
// the time tracers report wakeup latency and the count tracers report
// wakeup rates.
func CollectWakeups(s *defcall.Scheduler, tracer Tracer) {
	for _, hook := range s.Hooks() {
		hook, ok := hook.(*wakeTaskHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"scheduler %s already has tracer %s",
				s.Name(), reflect.TypeOf(tracer)))
		}
	}

	s.AcceptHook(&wakeTaskHook{t: tracer, scheduler: s})
}

// A wakeTaskHook translates deferred call hook events into tasks.
type wakeTaskHook struct {
	t         Tracer
	scheduler *defcall.Scheduler
}

func (h *wakeTaskHook) Func(ctx hooking.HookCtx) {
	handle := ctx.Item.(defcall.Handle)
	id := fmt.Sprintf("%s[%d]", h.scheduler.Name(), handle)

	switch ctx.Pos {
	case defcall.HookPosSet:
		h.t.StartTask(Task{
			ID:       id,
			Kind:     "deferred_call",
			What:     "wakeup",
			Location: h.scheduler.Name(),
			Detail:   handle,
		})
	case defcall.HookPosService:
		h.t.EndTask(Task{ID: id})
	}
}

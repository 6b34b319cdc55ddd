package tracing

import (
	"fmt"
	"reflect"

	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/naming"
	"github.com/kestrel-os/kestrel/vmux"
)

// CollectRequests lets a tracer observe the request lifecycle of a
// multiplexer. Each submitted request becomes one task whose ID is the
// request ID and whose location is the submitting device. Queueing,
// dispatching, and abort requests become steps of the task; delivery,
// rejection, and withdrawal end it.
func CollectRequests(m *vmux.Mux, tracer Tracer) {
	for _, hook := range m.Hooks() {
		hook, ok := hook.(*requestTaskHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"mux %s already has tracer %s",
				m.Name(), reflect.TypeOf(tracer)))
		}
	}

	m.AcceptHook(&requestTaskHook{t: tracer})
}

// A requestTaskHook translates multiplexer hook events into tasks.
type requestTaskHook struct {
	t Tracer
}

func (h *requestTaskHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case vmux.HookPosSubmit:
		req := ctx.Item.(*hil.Request)
		h.t.StartTask(Task{
			ID:       req.ID,
			Kind:     "request",
			What:     req.Kind.String(),
			Location: ctx.Detail.(naming.Named).Name(),
			Detail:   req,
		})
	case vmux.HookPosEnqueue:
		h.stepTask(ctx, "queued")
	case vmux.HookPosDispatch:
		h.stepTask(ctx, "dispatched")
	case vmux.HookPosAbort:
		h.stepTask(ctx, "abort requested")
	case vmux.HookPosDeliver, vmux.HookPosReject, vmux.HookPosWithdraw:
		req := ctx.Item.(*hil.Request)
		h.t.EndTask(Task{ID: req.ID})
	}
}

func (h *requestTaskHook) stepTask(ctx hooking.HookCtx, what string) {
	req := ctx.Item.(*hil.Request)

	h.t.StepTask(Task{
		ID:    req.ID,
		Steps: []TaskStep{{What: what}},
	})
}

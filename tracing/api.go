// Package tracing records what kernel domains do as tasks. Domains publish
// task start, step, and end events through their hooks; tracers subscribe
// with CollectTrace and aggregate or persist the tasks they see. The
// CollectRequests and CollectWakeups bridges translate multiplexer and
// deferred call hooks into tasks so that the standard tracers work on them
// unchanged.
package tracing

import (
	"fmt"

	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/hooking"
	"github.com/kestrel-os/kestrel/naming"
)

// NamedHookable represents something that has a name and can be hooked.
type NamedHookable interface {
	naming.Named
	hooking.Hookable
	InvokeHook(hooking.HookCtx)
}

// A list of hook positions for the task events.
var (
	HookPosTaskStart = &hooking.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "HookPosTaskEnd"}
)

// StartTask notifies the hooks that hook to the domain about the start of a
// task.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	detail interface{},
) {
	StartTaskWithLocation(id, parentID, domain, kind, what, domain.Name(),
		detail)
}

// StartTaskWithLocation notifies the hooks that hook to the domain about the
// start of a task, and can customize the location of the task, for work that
// belongs to a sub-part of the domain.
func StartTaskWithLocation(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	location string,
	detail interface{},
) {
	if domain.NumHooks() == 0 {
		return
	}

	allRequiredFieldsMustBeNotEmpty(id, domain, kind, what)
	domainMustHaveName(domain)

	task := Task{
		ID:       id,
		ParentID: parentID,
		Kind:     kind,
		What:     what,
		Location: location,
		Detail:   detail,
	}
	ctx := hooking.HookCtx{
		Domain: domain,
		Item:   task,
		Pos:    HookPosTaskStart,
	}
	domain.InvokeHook(ctx)
}

func allRequiredFieldsMustBeNotEmpty(
	id string,
	domain NamedHookable,
	kind string,
	what string,
) {
	if id == "" {
		panic("id must not be empty")
	}

	if domain == nil {
		panic("domain must not be nil")
	}

	if kind == "" {
		panic("kind must not be empty")
	}

	if what == "" {
		panic("what must not be empty")
	}
}

func domainMustHaveName(domain NamedHookable) {
	if domain.Name() == "" {
		panic("domain must have a name")
	}
}

// AddTaskStep marks that a milestone has been reached when processing a
// task.
func AddTaskStep(
	id string,
	domain NamedHookable,
	what string,
) {
	if domain.NumHooks() == 0 {
		return
	}

	step := TaskStep{
		What: what,
	}
	task := Task{
		ID:    id,
		Steps: []TaskStep{step},
	}
	ctx := hooking.HookCtx{
		Domain: domain,
		Item:   task,
		Pos:    HookPosTaskStep,
	}
	domain.InvokeHook(ctx)
}

// EndTask notifies the hooks about the end of a task.
func EndTask(
	id string,
	domain NamedHookable,
) {
	if domain.NumHooks() == 0 {
		return
	}

	task := Task{
		ID: id,
	}
	ctx := hooking.HookCtx{
		Domain: domain,
		Item:   task,
		Pos:    HookPosTaskEnd,
	}
	domain.InvokeHook(ctx)
}

// RequestIDAtHandler generates the standard ID for the task of handling a
// request at a given domain.
func RequestIDAtHandler(req *hil.Request, domain NamedHookable) string {
	return fmt.Sprintf("%s@%s", req.ID, domain.Name())
}

// TraceRequestReceive generates a new task for the handling of a request at
// the domain that accepted it. The kind of the task is always "req_handle",
// and its parent is the request's own task.
func TraceRequestReceive(
	req *hil.Request,
	domain NamedHookable,
) {
	StartTask(
		RequestIDAtHandler(req, domain),
		req.ID,
		domain,
		"req_handle",
		req.Kind.String(),
		req,
	)
}

// TraceRequestComplete terminates the request handling task.
func TraceRequestComplete(
	req *hil.Request,
	domain NamedHookable,
) {
	EndTask(RequestIDAtHandler(req, domain), domain)
}

package hooking

import "log"

// A LogHook is a hook that writes what it observes to a logger.
type LogHook interface {
	Hook
}

// LogHookBase provides the common logic for all LogHooks.
type LogHookBase struct {
	*log.Logger
}

// An ActivityLogger is a LogHook that writes one line per hook invocation:
// the domain's name, the position, and the item and detail when present.
// Attach it to any hookable object to watch its request lifecycle while
// debugging.
type ActivityLogger struct {
	LogHookBase
}

// NewActivityLogger returns an ActivityLogger that writes into the logger.
func NewActivityLogger(logger *log.Logger) *ActivityLogger {
	h := new(ActivityLogger)
	h.Logger = logger
	return h
}

// Func writes the invocation into the logger.
func (h *ActivityLogger) Func(ctx HookCtx) {
	name := "?"
	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		name = named.Name()
	}

	switch {
	case ctx.Item == nil:
		h.Printf("%s, %s", name, ctx.Pos.Name)
	case ctx.Detail == nil:
		h.Printf("%s, %s, %v", name, ctx.Pos.Name, ctx.Item)
	default:
		h.Printf("%s, %s, %v, %v", name, ctx.Pos.Name, ctx.Item, ctx.Detail)
	}
}

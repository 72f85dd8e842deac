package activitypub

import (
	"context"
	"errors"
	"fmt"
)

// Result is the terminal state of a dispatched activity.
type Result int

const (
	// Applied means the handler mutated local state.
	Applied Result = iota
	// Ignored means the activity was acknowledged without effect:
	// unknown type, missing object, or a payload too malformed to
	// apply. Senders must not be made to retry these.
	Ignored
	// DispatchRejected means the activity failed a trust check and had
	// no side effects.
	DispatchRejected
)

// dataError marks a payload problem that is acknowledged and ignored
// rather than surfaced to the sender.
type dataError struct {
	err error
}

func (d dataError) Error() string { return d.err.Error() }
func (d dataError) Unwrap() error { return d.err }

func dataErrorf(format string, args ...any) error {
	return dataError{fmt.Errorf(format, args...)}
}

var errMissingType = errors.New("activity has no type")

// rejection marks an activity that failed a trust check.
type rejection struct {
	reason string
}

func (r rejection) Error() string { return r.reason }

func rejectionf(format string, args ...any) error {
	return rejection{fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a trust-check rejection.
func IsRejection(err error) bool {
	var r rejection
	return errors.As(err, &r)
}

func isDataError(err error) bool {
	var d dataError
	return errors.As(err, &d)
}

type handlerKey struct {
	Activity string
	Object   string
}

type handlerFunc func(ctx context.Context, e *Env, act *Activity) error

// handlers is the closed dispatch table. Keys absent from the table are
// acknowledged and ignored, never errored, so unknown vocabulary from
// newer peers cannot abort a batch.
var handlers = map[handlerKey]handlerFunc{
	{"Create", "Note"}:     createStatus,
	{"Create", "Question"}: createStatus,

	{"Update", "Note"}:     updateNote,
	{"Update", "Question"}: updateQuestion,

	{"Update", "Person"}:       updateActor,
	{"Update", "Application"}:  updateActor,
	{"Update", "Service"}:      updateActor,
	{"Update", "Group"}:        updateActor,
	{"Update", "Organization"}: updateActor,
}

// actorObjectTypes are the object types that describe an actor rather
// than a piece of content.
var actorObjectTypes = map[string]bool{
	"Person":       true,
	"Application":  true,
	"Service":      true,
	"Group":        true,
	"Organization": true,
}

// Dispatch routes a resolved activity to its handler. The handler runs
// only when the activity's subject belongs to the authenticated signer:
// an Update whose embedded object is an actor document must name the
// signer itself as the updated subject.
func (e *Env) Dispatch(ctx context.Context, act *Activity) (Result, error) {
	if actorObjectTypes[act.ObjectType()] {
		if subject := stringFromAny(act.Object["id"]); subject != act.Actor.URI {
			return DispatchRejected, rejectionf("subject %q does not match authenticated signer %q", subject, act.Actor.URI)
		}
	}

	fn, ok := handlers[handlerKey{Activity: act.Type, Object: act.ObjectType()}]
	if !ok {
		e.Log().Debug("ignoring activity", "type", act.Type, "object", act.ObjectType(), "id", act.ID)
		return Ignored, nil
	}

	err := fn(ctx, e, act)
	switch {
	case err == nil:
		return Applied, nil
	case IsRejection(err):
		return DispatchRejected, err
	case isDataError(err):
		e.Log().Info("ignoring malformed activity", "type", act.Type, "id", act.ID, "error", err)
		return Ignored, nil
	default:
		// transient, surfaced for sender-side retry
		return Ignored, err
	}
}

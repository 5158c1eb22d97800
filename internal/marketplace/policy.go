package marketplace

// Action names a workflow or CRUD operation subject to authorization.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionApply    Action = "apply"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionComment  Action = "comment"
)

// Reason explains a denied Decision.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotOwner        Reason = "not_owner"
	ReasonWrongRole       Reason = "wrong_role"
	ReasonUnknownAction   Reason = "unknown_action"
)

// Decision is the outcome of CanPerform.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }
func isOwner(job *Job, id Identity) bool { return job != nil && job.Client == id.ID }

// CanPerform decides whether identity may perform action on job. job may be
// nil for ActionCreate. It has no side effects.
func CanPerform(action Action, job *Job, identity Identity) Decision {
	if identity.ID == "" {
		return deny(ReasonUnauthenticated)
	}
	if _, err := ParseRole(string(identity.Role)); err != nil {
		return deny(ReasonUnauthenticated)
	}

	switch action {
	case ActionCreate:
		if identity.Role != RoleClient {
			return deny(ReasonWrongRole)
		}
	case ActionUpdate, ActionDelete, ActionComplete:
		if !isOwner(job, identity) {
			return deny(ReasonNotOwner)
		}
	case ActionApply:
		if identity.Role != RoleFreelancer {
			return deny(ReasonWrongRole)
		}
	case ActionAccept, ActionReject:
		if !isOwner(job, identity) {
			return deny(ReasonNotOwner)
		}
		if identity.Role != RoleClient {
			return deny(ReasonWrongRole)
		}
	case ActionComment:
	default:
		return deny(ReasonUnknownAction)
	}
	return allow()
}

// denialError converts a denied Decision into the error returned to callers.
func denialError(action Action, d Decision) error {
	switch d.Reason {
	case ReasonUnauthenticated:
		return newError(KindUnauthenticated, "authenticated identity required")
	case ReasonNotOwner:
		return newError(KindForbidden, "not authorized to %s this job", action)
	case ReasonWrongRole:
		return newError(KindForbidden, "role not permitted to %s", action)
	default:
		return newError(KindForbidden, "action %q is not permitted", action)
	}
}

package step

// Kind classifies why a step did not simply succeed.
type Kind string

const (
	// KindNone means no condition applies.
	KindNone Kind = ""
	// KindPrivilege indicates sudo or a permission check denied the operation.
	KindPrivilege Kind = "PrivilegeError"
	// KindNotFound indicates a missing file, user, config or unit.
	KindNotFound Kind = "NotFoundError"
	// KindNetwork indicates the artifact download failed.
	KindNetwork Kind = "NetworkError"
	// KindProcess indicates an external command exited non-zero for any other reason.
	KindProcess Kind = "ProcessError"
	// KindAlreadyExists indicates the resource is already present.
	KindAlreadyExists Kind = "AlreadyExistsError"
	// KindInterrupted indicates the run was cancelled before or during the step.
	KindInterrupted Kind = "Interrupted"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// Label returns a short lower-case label for reports.
func (k Kind) Label() string {
	switch k {
	case KindPrivilege:
		return "permission denied"
	case KindNotFound:
		return "not found"
	case KindNetwork:
		return "network error"
	case KindProcess:
		return "command failed"
	case KindAlreadyExists:
		return "already exists"
	case KindInterrupted:
		return "interrupted"
	case KindNone:
		return ""
	}
	return string(k)
}

package step

import (
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// Change is what Apply would do to a host resource.
type Change string

// Changes a step can plan.
const (
	ChangeCreate Change = "create"
	ChangeUpdate Change = "update"
	ChangeDelete Change = "delete"
	ChangeNone   Change = "none"
)

// Diff describes the change Apply would make: which resource, its current
// value and its wanted value.
type Diff struct {
	change   Change
	resource string
	target   string
	from     string
	to       string
	detail   string
}

// NewDiff creates a Diff. from is empty for ChangeCreate, to for ChangeDelete.
func NewDiff(change Change, resource, target, from, to string) Diff {
	return Diff{change: change, resource: resource, target: target, from: from, to: to}
}

// NewFileDiff plans writing want to path, with a unified diff against
// current. A nil current means the file does not exist yet.
func NewFileDiff(resource, path string, current, want []byte) Diff {
	d := Diff{resource: resource, target: path}
	switch {
	case current == nil:
		d.change = ChangeCreate
	case string(current) == string(want):
		d.change = ChangeNone
		return d
	default:
		d.change = ChangeUpdate
	}
	d.detail = udiff.Unified("a"+path, "b"+path, string(current), string(want))
	return d
}

// Change returns the planned change.
func (d Diff) Change() Change {
	return d.change
}

// Resource names the kind of resource, such as "user" or "unit".
func (d Diff) Resource() string {
	return d.resource
}

// Target is the resource's name or path.
func (d Diff) Target() string {
	return d.target
}

// From is the current value.
func (d Diff) From() string {
	return d.from
}

// To is the wanted value.
func (d Diff) To() string {
	return d.to
}

// Detail returns the long-form change, typically a unified diff.
func (d Diff) Detail() string {
	return d.detail
}

// WithDetail returns a copy of the diff carrying a long-form change.
func (d Diff) WithDetail(detail string) Diff {
	d.detail = detail
	return d
}

// Summary returns a one-line description such as
// "update binary /usr/local/bin/node_exporter: 1.7.0 -> 1.8.1".
func (d Diff) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", d.change, d.resource, d.target)
	switch {
	case d.from != "" && d.to != "":
		fmt.Fprintf(&b, ": %s -> %s", d.from, d.to)
	case d.to != "":
		fmt.Fprintf(&b, " (%s)", d.to)
	case d.from != "":
		fmt.Fprintf(&b, " (%s)", d.from)
	}
	return b.String()
}

// IsEmpty reports whether the diff plans nothing.
func (d Diff) IsEmpty() bool {
	return (d.change == "" || d.change == ChangeNone) && d.detail == ""
}

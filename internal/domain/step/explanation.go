package step

import (
	"slices"
	"strings"
)

// Explanation tells an operator what a step does to the host.
type Explanation struct {
	summary string
	detail  string
	docs    []string
}

// NewExplanation creates an Explanation. docs are reference URLs.
func NewExplanation(summary, detail string, docs ...string) Explanation {
	return Explanation{summary: summary, detail: detail, docs: slices.Clone(docs)}
}

// Summary is a short title, such as "Create service user".
func (e Explanation) Summary() string {
	return e.summary
}

// Detail says which host resources the step touches.
func (e Explanation) Detail() string {
	return e.detail
}

// Docs returns the reference URLs.
func (e Explanation) Docs() []string {
	return slices.Clone(e.docs)
}

// String joins the detail and the reference URLs on one line.
func (e Explanation) String() string {
	parts := make([]string, 0, 1+len(e.docs))
	switch {
	case e.detail != "":
		parts = append(parts, e.detail)
	case e.summary != "":
		parts = append(parts, e.summary)
	}
	for _, d := range e.docs {
		parts = append(parts, "see "+d)
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether the explanation says nothing.
func (e Explanation) IsEmpty() bool {
	return e.summary == "" && e.detail == ""
}

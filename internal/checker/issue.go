package checker

// Issue is one finding raised by a check. Issues are values; a check hands
// out copies so the caller never shares state with it.
type Issue struct {
	// Ref identifies the kind of weakness, e.g. "csrf-no-protection".
	Ref string `json:"ref"`
	// Position locates the finding inside the target, e.g. a form action.
	Position string `json:"position,omitempty"`
	// Content is the evidence.
	Content string `json:"content"`
	// MaybeFalsePositive marks findings that static analysis cannot confirm.
	MaybeFalsePositive bool `json:"maybe_false_positive"`
}

// NewIssue builds an issue.
func NewIssue(ref, position, content string, maybeFalsePositive bool) Issue {
	return Issue{
		Ref:                ref,
		Position:           position,
		Content:            content,
		MaybeFalsePositive: maybeFalsePositive,
	}
}

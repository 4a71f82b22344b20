package model

import (
	"fmt"
	"strings"
)

// Severity represents how serious an Issue is.
//
// Design decision: We use iota-based constants rather than string constants
// so severities can be compared and sorted cheaply. Text marshaling keeps the
// JSON report and the history database human readable.
type Severity int

const (
	// SeverityInfo marks informational issues such as followed redirects
	// or missing Open Graph tags.
	SeverityInfo Severity = iota

	// SeverityWarning marks issues that should be reviewed but do not break
	// the page, e.g. a title that is too short.
	SeverityWarning

	// SeverityError marks issues that need fixing: broken links, missing
	// titles, missing meta descriptions.
	SeverityError
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "info":
		*s = SeverityInfo
	case "warning", "warn":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", string(text))
	}
	return nil
}

// IssueType identifies the rule that produced an Issue.
type IssueType string

// Issue types produced by the SEO analyzer and the link validator.
const (
	IssueMissingTitle            IssueType = "missing_title"
	IssueTitleTooShort           IssueType = "title_too_short"
	IssueTitleTooLong            IssueType = "title_too_long"
	IssueMissingMetaDescription  IssueType = "missing_meta_description"
	IssueMetaDescriptionTooShort IssueType = "meta_description_too_short"
	IssueMetaDescriptionTooLong  IssueType = "meta_description_too_long"
	IssueMissingImageAlt         IssueType = "missing_image_alt"
	IssueMissingH1               IssueType = "missing_h1"
	IssueMultipleH1              IssueType = "multiple_h1"
	IssueThinContent             IssueType = "thin_content"
	IssueBrokenLink              IssueType = "broken_link"
	IssueRedirect                IssueType = "redirect"
	IssueMissingOgTitle          IssueType = "missing_og_title"
	IssueMissingOgDescription    IssueType = "missing_og_description"
	IssueMissingOgImage          IssueType = "missing_og_image"
	IssueMissingOgURL            IssueType = "missing_og_url"
	IssueMissingOgType           IssueType = "missing_og_type"
)

// Issue is a single problem found on a page.
type Issue struct {
	// Severity is how serious the issue is.
	Severity Severity `json:"severity"`

	// Type identifies the rule that produced the issue.
	Type IssueType `json:"issue_type"`

	// Message is a human-readable description including the offending values.
	Message string `json:"message"`
}

// NewIssue creates an Issue with a formatted message.
func NewIssue(severity Severity, issueType IssueType, format string, args ...any) Issue {
	return Issue{
		Severity: severity,
		Type:     issueType,
		Message:  fmt.Sprintf(format, args...),
	}
}

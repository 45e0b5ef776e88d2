package model

// IssueKind categorizes an issue line; it determines the icon shown next to it.
type IssueKind string

const (
	KindInfo    IssueKind = "info"
	KindWarning IssueKind = "warning"
	KindDanger  IssueKind = "danger"
	KindLocalAI IssueKind = "local_ai"
	KindCloudAI IssueKind = "cloud_ai"
	KindClear   IssueKind = "clear"
)

// Icon returns the display glyph for the kind.
func (k IssueKind) Icon() string {
	switch k {
	case KindWarning:
		return "⚠️"
	case KindDanger:
		return "🚨"
	case KindLocalAI:
		return "🤖"
	case KindCloudAI:
		return "💬"
	case KindClear:
		return "✅"
	default:
		return "ℹ️"
	}
}

// Issue is one human-readable finding on a scanned tab.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// NoIssuesMessage is the placeholder emitted when nothing triggered.
const NoIssuesMessage = "No security issues detected"

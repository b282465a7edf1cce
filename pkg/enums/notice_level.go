package enums

// NoticeLevel grades a soft notification surfaced to the rendering layer.
type NoticeLevel string

const (
	NoticeLevelInfo    NoticeLevel = "info"
	NoticeLevelWarning NoticeLevel = "warning"
	NoticeLevelError   NoticeLevel = "error"
)

// String implements fmt.Stringer.
func (n NoticeLevel) String() string {
	return string(n)
}

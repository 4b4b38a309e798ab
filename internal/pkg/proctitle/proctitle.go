package proctitle

import "strings"

const (
	prefix      = "gai-"
	maxTitleLen = 15
)

// ForCommand builds the short title shown by ps/top for a subcommand, e.g. "gai-serve".
func ForCommand(command string) string {
	title := prefix + strings.ToLower(strings.TrimSpace(command))
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	return title
}

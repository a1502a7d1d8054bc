// ABOUTME: Reply styling for WhatsApp delivery
// ABOUTME: Strips citation markers and converts markdown bold to WhatsApp bold

package whatsapp

import (
	"regexp"
	"strings"
)

var (
	// Assistant replies may embed 【...】 citation markers; WhatsApp users
	// should never see them.
	citationPattern = regexp.MustCompile(`【.*?】`)

	// Markdown **bold** becomes WhatsApp *bold*
	boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

// StyleReply rewrites assistant output into WhatsApp text formatting
func StyleReply(text string) string {
	text = strings.TrimSpace(citationPattern.ReplaceAllString(text, ""))
	return boldPattern.ReplaceAllString(text, `*$1*`)
}

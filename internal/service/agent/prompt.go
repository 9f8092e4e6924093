package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

const (
	TimeLayout = "2006-01-02 15:04:05"
	NoMemories = "no memories yet"
)

const DefaultSystemPrompt = `You are a helpful and friendly chatbot. Get to know the user! Ask questions! Be spontaneous!
{user_info}

System Time: {time}`

// FormatMemories renders recalled memories as a flat list, one per line.
func FormatMemories(items []core.MemoryItem) string {
	if len(items) == 0 {
		return NoMemories
	}

	var sb strings.Builder
	sb.WriteString("<memories>\n")
	for _, item := range items {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		if item.Kind != "" {
			fmt.Fprintf(&sb, "- [%s] %s\n", item.Kind, content)
		} else {
			fmt.Fprintf(&sb, "- %s\n", content)
		}
	}
	sb.WriteString("</memories>")
	return sb.String()
}

// BuildSystemPrompt fills the {user_info} and {time} placeholders. Any other
// braces in the template are left untouched.
func BuildSystemPrompt(template string, memories []core.MemoryItem, now time.Time) string {
	if template == "" {
		template = DefaultSystemPrompt
	}
	r := strings.NewReplacer(
		"{user_info}", FormatMemories(memories),
		"{time}", now.UTC().Format(TimeLayout),
	)
	return r.Replace(template)
}

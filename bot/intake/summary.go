package intake

import (
	"fmt"
	"strings"

	"github.com/m3rciful/petbot/core/telegram/format"
)

// Summary renders the completed profile as Markdown (v1).
func Summary(profile map[string]string) string {
	var b strings.Builder
	b.WriteString("*Profile complete!*\n\n")
	for _, f := range Fields {
		fmt.Fprintf(&b, "*%s:* %s\n", f.Label, format.EscapeV1(strings.TrimSpace(profile[f.Key])))
	}
	name := format.EscapeV1(strings.TrimSpace(profile[KeyName]))
	fmt.Fprintf(&b, "\nGreat! I now know about %s. Tell me what's going on and I'll help. Photos, videos and voice notes are welcome too.\n", name)
	b.WriteString("Send /reset to start over or /exit to end the session.")
	return b.String()
}

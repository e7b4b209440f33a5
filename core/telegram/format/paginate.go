package format

import (
	"strings"
	"unicode/utf16"
)

// MaxMessageLen is Telegram's limit for one text message, in UTF-16 code units.
const MaxMessageLen = 4096

// Paginate splits text into chunks of at most size UTF-16 code units, the unit
// Telegram measures messages in. A chunk ends at the last newline in its second
// half when there is one, so paragraphs stay intact.
func Paginate(text string, size int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 || size > MaxMessageLen {
		size = MaxMessageLen
	}

	runes := []rune(text)
	var pages []string
	for {
		end := fit(runes, size)
		if end == len(runes) {
			break
		}
		cut := end
		for i := end - 1; i >= end/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		if page := strings.TrimRight(string(runes[:cut]), "\n"); page != "" {
			pages = append(pages, page)
		}
		runes = runes[cut:]
	}
	if rest := strings.TrimRight(string(runes), "\n"); strings.TrimSpace(rest) != "" {
		pages = append(pages, rest)
	}
	return pages
}

// fit returns how many leading runes fit in size UTF-16 code units, at least one.
func fit(runes []rune, size int) int {
	n := 0
	for i, r := range runes {
		n += max(utf16.RuneLen(r), 1)
		if n > size {
			return max(i, 1)
		}
	}
	return len(runes)
}

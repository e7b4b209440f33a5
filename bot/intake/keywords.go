package intake

import (
	"fmt"
	"regexp"
	"strings"
)

type keyword int

const (
	kwNone keyword = iota
	kwGreeting
	kwReset
	kwExit
	kwStatus
)

var keywords = map[string]keyword{
	"hi":       kwGreeting,
	"hello":    kwGreeting,
	"hey":      kwGreeting,
	"start":    kwGreeting,
	"/start":   kwGreeting,
	"/reset":   kwReset,
	"reset":    kwReset,
	"/restart": kwReset,
	"/exit":    kwExit,
	"exit":     kwExit,
	"/stop":    kwExit,
	"/quit":    kwExit,
	"/status":  kwStatus,
	"/debug":   kwStatus,
}

// keywordOf matches text case-insensitively against the keyword set. A bot
// mention suffix on commands ("/start@petbot") is ignored.
func keywordOf(text string) keyword {
	t := strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(t, "/") {
		if at := strings.IndexByte(t, '@'); at > 0 {
			t = t[:at]
		}
	}
	return keywords[t]
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

var setPetRe = regexp.MustCompile(`(?i)^/setpet(?:@\S+)?\s+"([^"]+)"\s+(dog|cat)\s+(\d{1,2})\s+"([^"]+)"$`)

const setPetUsage = "Usage: /setpet \"<name>\" <Dog|Cat> <age> \"<breed>\"\nExample: /setpet \"Tommy\" Dog 5 \"Golden Retriever\""

// quickProfile holds the fields set by the /setpet shortcut.
type quickProfile struct {
	name, kind, age, breed string
}

func isSetPet(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "/setpet" || strings.HasPrefix(t, "/setpet ") || strings.HasPrefix(t, "/setpet@")
}

func parseSetPet(text string) (quickProfile, bool) {
	m := setPetRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return quickProfile{}, false
	}
	kind := "Dog"
	if strings.EqualFold(m[2], "cat") {
		kind = "Cat"
	}
	age := strings.TrimLeft(m[3], "0")
	switch age {
	case "":
		age = "Under 1 year"
	case "1":
		age = "1 year"
	default:
		age = fmt.Sprintf("%s years", age)
	}
	return quickProfile{
		name:  strings.TrimSpace(m[1]),
		kind:  kind,
		age:   age,
		breed: strings.TrimSpace(m[4]),
	}, true
}

func (q quickProfile) apply(profile map[string]string) {
	profile[KeyName] = q.name
	profile[KeyType] = q.kind
	profile[KeyAge] = q.age
	profile[KeyBreed] = q.breed
}

package responder

import (
	"fmt"
	"strings"
)

var promptDetails = []struct{ key, label string }{
	{"pet_name", "Name"},
	{"pet_type", "Type"},
	{"pet_breed", "Breed"},
	{"pet_age", "Age"},
	{"pet_gender", "Gender"},
	{"pet_weight", "Weight"},
}

// SystemPrompt builds the instruction block for in-process language-model responders.
func SystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a pet-care assistant with long veterinary experience. ")
	b.WriteString("Keep answers short, concrete and factual.\n\n")

	limit := req.MaxQuestions
	if limit <= 0 {
		limit = 4
	}
	remaining := limit - req.QuestionsAsked
	if remaining < 0 {
		remaining = 0
	}
	fmt.Fprintf(&b, "When the owner describes a problem, ask up to %d clarifying questions, one per message. ", limit)
	fmt.Fprintf(&b, "You have asked %d so far (%d left). ", req.QuestionsAsked, remaining)
	b.WriteString("Once you have enough information, answer in this shape:\n")
	b.WriteString("**Analysis:** a brief assessment of the situation\n")
	b.WriteString("**Advice:** practical care steps the owner can take at home\n\n")

	b.WriteString("Pet profile:\n")
	for _, d := range promptDetails {
		value := strings.TrimSpace(req.PetDetails[d.key])
		if value == "" {
			value = "unknown"
		}
		fmt.Fprintf(&b, "- %s: %s\n", d.label, value)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Give general care guidance and home measures, not a diagnosis.\n")
	b.WriteString("- Do not recommend specific brands.\n")
	b.WriteString("- Refer to a veterinarian only for serious or life-threatening signs.\n")
	b.WriteString("- End final advice with: \"If this looks serious, please see a veterinarian.\"\n")
	return b.String()
}

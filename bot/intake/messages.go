package intake

import (
	"github.com/m3rciful/petbot/bot/responder"
)

// User-facing texts.
const (
	MsgRateLimited        = "Please wait a moment before sending another message."
	MsgSayHi              = "Hi there! Say \"hi\" to get started."
	MsgUseConsentBtns     = "Please use the Accept or Decline buttons under the document above."
	MsgTermsDeclined      = "You need to accept the Terms of Service to use this bot. Say \"hi\" whenever you want to start again."
	MsgDisclaimerDeclined = "You need to accept the disclaimer to use this bot. Say \"hi\" whenever you want to start again."
	MsgWelcome            = "Thank you! Let's set up your pet's profile so I can give better advice. It takes six quick questions."
	MsgUseButtons         = "Please pick one of the buttons below."
	MsgTextOnly           = "Please answer this step with a text message."
	MsgEmptyAnswer        = "Please send a non-empty answer."
	MsgConsentRecorded    = "Your consent is already recorded."
	MsgReset              = "Your session has been reset. Say \"hi\" to start over."
	MsgEmptyMessage       = "Please send a message or a photo describing the problem."
	MsgBlankReply         = "Sorry, I couldn't come up with an answer to that. Please try rephrasing."
	MsgGenericFailure     = "Sorry, something went wrong while processing your request. Please try again later."
	MsgOptionUnknown      = "That option is not available for this step."
	MsgMediaUnavailable   = "I couldn't download that file. Please try sending it again."

	noticeAccepted = "Accepted"
	noticeDeclined = "Declined"
	noticeStale    = "This button is no longer active"
	noticeSaved    = "Saved"
)

var responderMessages = map[responder.Kind]string{
	responder.KindTimeout:         "The assistant took too long to answer. Please try again in a moment.",
	responder.KindNonZeroExit:     "The assistant ran into a problem while preparing an answer. Please try again later.",
	responder.KindMalformedOutput: "I received an unreadable answer from the assistant. Please try again.",
	responder.KindEmptyOutput:     "The assistant returned an empty answer. Please try rephrasing your message.",
	responder.KindTransportStart:  "The assistant is unavailable right now. Please try again later.",
	responder.KindRemote:          "The assistant reported an error while answering. Please try again.",
}

// ResponderMessage returns the user-facing text for a failed exchange.
func ResponderMessage(err error) string {
	if kind, ok := responder.KindOf(err); ok {
		if msg, ok := responderMessages[kind]; ok {
			return msg
		}
	}
	return MsgGenericFailure
}

package domain

// IntentKind classifies the action the relay will take for an event.
type IntentKind string

const (
	IntentIgnore          IntentKind = "ignore"
	IntentTextReply       IntentKind = "text_reply"
	IntentImageGenerate   IntentKind = "image_generate"
	IntentImageUnderstand IntentKind = "image_understand"
	IntentVoiceReply      IntentKind = "voice_reply"
)

// Intent is the classified action for one event. Exactly one Intent is
// produced per ChatEvent; the Kind determines which payload fields are
// meaningful.
type Intent struct {
	Kind IntentKind

	// Prompt is the alias-stripped message text for TextReply and
	// VoiceReply, or the text following the draw trigger for
	// ImageGenerate.
	Prompt string

	// Question is the caption or message text accompanying an attached
	// image for ImageUnderstand. Empty means "describe this image".
	Question string

	// Image is the attached image for ImageUnderstand.
	Image *MediaRef
}

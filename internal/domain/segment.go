package domain

// SpeakerUnknown is used when the backend reports no diarization tag.
const SpeakerUnknown = "Unknown"

// TranscriptSegment is one normalized result from the transcription backend.
// Immutable once emitted.
type TranscriptSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// TranslatedUtterance is a final segment rendered for one listener language.
type TranslatedUtterance struct {
	Source     TranscriptSegment `json:"source"`
	TargetLang Lang              `json:"targetLang"`
	Text       string            `json:"translatedText"`
	Audio      []byte            `json:"audio"`
}

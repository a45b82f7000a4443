package turncontroller

import "strings"

// blankMarkers are exact (case-insensitive) ASR transcripts that mean "no
// speech detected" (spec §4.4).
var blankMarkers = map[string]bool{
	"[blank_audio]": true,
	"[blank]":       true,
	"[silence]":     true,
	"[empty]":       true,
	"[no_speech]":   true,
}

// noiseTokens name non-speech sounds the ASR sometimes transcribes inside
// parentheses, e.g. "(background music)".
var noiseTokens = []string{"music", "background music", "applause", "laughter", "silence", "noise", "static"}

// punctuationOnly is the character set spec §4.4 names as "nothing but
// punctuation/whitespace".
const punctuationOnly = ". , ! ? : ; - ' \" ( ) [ ] { } "

// isBlankOrNoiseTranscript implements the ASR rejection rule of spec §4.4:
// exact blank markers, parenthesized noise descriptions, and
// punctuation-only text are all treated as "no usable speech".
func isBlankOrNoiseTranscript(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)

	if blankMarkers[lower] {
		return true
	}
	if isParenthesizedNoise(lower) {
		return true
	}
	if isPunctuationOnly(trimmed) {
		return true
	}
	if isBracketedNoiseMarker(lower) {
		return true
	}
	return false
}

// isParenthesizedNoise matches "(music)", "(background music)", and any
// parenthesized text containing one of noiseTokens.
func isParenthesizedNoise(lower string) bool {
	if !strings.HasPrefix(lower, "(") || !strings.HasSuffix(lower, ")") {
		return false
	}
	inner := strings.TrimSpace(lower[1 : len(lower)-1])
	for _, token := range noiseTokens {
		if inner == token || strings.Contains(inner, token) {
			return true
		}
	}
	return false
}

// isBracketedNoiseMarker handles a transcript wrapped in [] or {} that
// names a known noise token, e.g. "[music]".
func isBracketedNoiseMarker(lower string) bool {
	opens, closes := "[{", "]}"
	for i := range opens {
		open, close := opens[i:i+1], closes[i:i+1]
		if strings.HasPrefix(lower, open) && strings.HasSuffix(lower, close) {
			inner := strings.TrimSpace(lower[1 : len(lower)-1])
			for _, token := range noiseTokens {
				if inner == token {
					return true
				}
			}
		}
	}
	return false
}

func isPunctuationOnly(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(punctuationOnly, r) {
			return false
		}
	}
	return true
}

// diagnosticPhrases are LLM outputs that mean "the rewrite failed because
// there was nothing to rewrite", checked as case-insensitive substrings
// (spec §4.4).
var diagnosticPhrases = []string{
	"please provide the transcript",
	"no transcript provided",
	"there was no transcript",
	"i'm unable to correct",
	"transcript is blank",
	"it seems there was no input",
}

// isDiagnosticLLMOutput implements the LLM rejection rule of spec §4.4.
func isDiagnosticLLMOutput(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)
	if blankMarkers[lower] {
		return true
	}
	for _, phrase := range diagnosticPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// meanAbsAmplitude computes the mean of absolute sample amplitudes over
// little-endian s16 PCM, used as the low-energy discard guard (spec §4.4).
func meanAbsAmplitude(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		if s < 0 {
			sum += int64(-s)
		} else {
			sum += int64(s)
		}
	}
	return float64(sum) / float64(n)
}

package preference

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/recallhq/recall/store"
)

// safeTransform runs fn and falls back to the input text if it panics. Every
// transformation is failure-isolated: the caller must always get at least
// the unmodified text back.
func safeTransform(text string, fn func(string) string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("preference transform failed", "panic", r)
			result = text
		}
	}()
	return fn(text)
}

// redundantLeadIns are hedge and filler phrases stripped for concise style.
var redundantLeadIns = []string{
	"As I mentioned before, ",
	"As I mentioned earlier, ",
	"It should be noted that ",
	"It is important to note that ",
	"It's worth mentioning that ",
	"Basically, ",
}

var technicalReplacements = [][2]string{
	{"works by using", "algorithmically implements"},
	{"works by", "operates by"},
	{"simple method", "streamlined algorithm"},
	{"way of doing", "methodology for"},
	{" uses ", " utilizes "},
}

var casualReplacements = [][2]string{
	{"utilize", "use"},
	{"functionality", "feature"},
	{"implement", "set up"},
	{"algorithm", "method"},
	{"parameters", "settings"},
	{"Therefore", "So"},
}

func applyStyle(text string, style store.ResponseStyleType) string {
	switch style {
	case store.ResponseStyleConcise:
		for _, phrase := range redundantLeadIns {
			text = strings.ReplaceAll(text, phrase, "")
		}
		return text
	case store.ResponseStyleDetailed:
		return text + "\n\nThis is important because it affects how the rest of the system behaves. Would you like me to elaborate on any part?"
	case store.ResponseStyleTechnical:
		for _, pair := range technicalReplacements {
			text = strings.ReplaceAll(text, pair[0], pair[1])
		}
		return text
	case store.ResponseStyleCasual:
		for _, pair := range casualReplacements {
			text = strings.ReplaceAll(text, pair[0], pair[1])
		}
		return text
	default:
		return text
	}
}

// hedgingPhrases are stripped for the direct tone.
var hedgingPhrases = []string{
	"I think ",
	"I believe ",
	"might want to consider ",
	"might want to ",
	"perhaps ",
	"maybe ",
	"possibly ",
}

var professionalReplacements = [][2]string{
	{"Hey there!", "Hello,"},
	{"Hey!", "Hello."},
	{"Hey", "Hello"},
	{"Thanks!", "Thank you."},
	{"Thanks", "Thank you"},
	{"No problem", "You are welcome"},
	{"Yeah", "Yes"},
}

func applyTone(text string, tone store.CommunicationTone) string {
	switch tone {
	case store.ToneFriendly:
		return text + "\n\nI hope this helps!"
	case store.ToneProfessional:
		for _, pair := range professionalReplacements {
			text = strings.ReplaceAll(text, pair[0], pair[1])
		}
		return text
	case store.ToneDirect:
		for _, phrase := range hedgingPhrases {
			text = strings.ReplaceAll(text, phrase, "")
		}
		return text
	case store.ToneEncouraging:
		return "Great question! " + text + "\n\nYou're on the right track!"
	default:
		return text
	}
}

const shortResponseLimit = 240

func adjustLength(text, preferred string) string {
	switch preferred {
	case store.LengthShort:
		if len(text) <= shortResponseLimit {
			return text
		}
		cut := strings.LastIndexByte(text[:shortResponseLimit], ' ')
		if cut <= 0 {
			cut = shortResponseLimit
		}
		return strings.TrimRight(text[:cut], " ,;") + "..."
	case store.LengthLong:
		return text + "\n\nLet me know if you would like more depth on any part of this."
	default:
		return text
	}
}

var (
	sequenceMarkers  = regexp.MustCompile(`(?i)\b(first|then|next|finally|second|third|lastly)\b[, ]*`)
	numberedLineRe   = regexp.MustCompile(`(?m)^\s*\d+\.\s*`)
	sentenceSplitRe  = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
	politenessTokens = []string{"please", "thank you", "thanks", "hope this helps"}
)

func applyFormatting(text string, prefs store.CommunicationPreferences) string {
	if prefs.PrefersStepByStep {
		text = numberSequentialProse(text)
	}
	if prefs.PrefersBulletPoints {
		text = numberedLineRe.ReplaceAllString(text, "• ")
	}
	lower := strings.ToLower(text)
	if prefs.PrefersCodeExamples && (strings.Contains(lower, "code") || strings.Contains(lower, "program")) {
		text += "\n\nFor example, you could try this in a small code sample first."
	}
	if prefs.PrefersAnalogies {
		text += "\n\nThink of it like following a recipe: each part builds on the one before."
	}
	return text
}

// numberSequentialProse rewrites "First, ... Then, ... Finally, ..." prose
// as a numbered list. Text without at least two sequence markers is left
// alone.
func numberSequentialProse(text string) string {
	if len(sequenceMarkers.FindAllString(text, -1)) < 2 {
		return text
	}

	matches := sentenceSplitRe.FindAllStringSubmatch(text, -1)
	if len(matches) < 2 {
		return text
	}

	lines := make([]string, 0, len(matches))
	for _, match := range matches {
		sentence := strings.TrimSpace(sequenceMarkers.ReplaceAllString(match[1], ""))
		if sentence == "" {
			continue
		}
		lines = append(lines, strconv.Itoa(len(lines)+1)+". "+sentence)
	}
	return strings.Join(lines, "\n")
}

// correctionDiff is the structural difference between an original response
// and a user-corrected version of it.
type correctionDiff struct {
	LengthChange         int
	PrefersNumberedLists bool
	PrefersBulletPoints  bool
	PolitenessAdded      bool
}

func analyzeCorrectionDiff(original, corrected string) correctionDiff {
	diff := correctionDiff{
		LengthChange: len(corrected) - len(original),
	}
	if numberedLineRe.MatchString(corrected) && !numberedLineRe.MatchString(original) {
		diff.PrefersNumberedLists = true
	}
	if strings.Contains(corrected, "•") && !strings.Contains(original, "•") {
		diff.PrefersBulletPoints = true
	}

	originalLower := strings.ToLower(original)
	correctedLower := strings.ToLower(corrected)
	for _, token := range politenessTokens {
		if strings.Contains(correctedLower, token) && !strings.Contains(originalLower, token) {
			diff.PolitenessAdded = true
			break
		}
	}
	return diff
}

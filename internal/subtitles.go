package internal

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	srtTiming = regexp.MustCompile(`(\d+):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{2}):(\d{2})[,.](\d{1,3})`)
	srtTags   = regexp.MustCompile(`</?[^>]+>`)
)

// parseSRT converts SRT content into timed entries. Blocks without a timing
// line or without text are skipped.
func parseSRT(content string) []TranscriptEntry {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var entries []TranscriptEntry
	for block := range strings.SplitSeq(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")

		timingIdx := -1
		for i, line := range lines {
			if srtTiming.MatchString(line) {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 {
			continue
		}

		m := srtTiming.FindStringSubmatch(lines[timingIdx])
		start := srtSeconds(m[1], m[2], m[3], m[4])
		end := srtSeconds(m[5], m[6], m[7], m[8])

		var text []string
		for _, line := range lines[timingIdx+1:] {
			line = strings.TrimSpace(srtTags.ReplaceAllString(line, ""))
			if line != "" {
				text = append(text, line)
			}
		}
		if len(text) == 0 {
			continue
		}

		entries = append(entries, TranscriptEntry{
			Text:     strings.Join(text, " "),
			Start:    start,
			Duration: max(end-start, 0),
		})
	}

	return entries
}

func srtSeconds(h, m, s, frac string) float64 {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.Atoi(s)
	// normalise "5" and "50" to milliseconds
	for len(frac) < 3 {
		frac += "0"
	}
	millis, _ := strconv.Atoi(frac)
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000
}

// collapseRollingCaptions merges the overlapping lines of auto-generated
// captions, where each cue repeats the tail of the previous one.
func collapseRollingCaptions(entries []TranscriptEntry) []TranscriptEntry {
	result := make([]TranscriptEntry, 0, len(entries))

	for _, e := range entries {
		if len(result) == 0 {
			result = append(result, e)
			continue
		}

		prev := &result[len(result)-1]
		switch {
		case strings.Contains(prev.Text, e.Text):
			prev.Duration = max(prev.Duration, e.Start+e.Duration-prev.Start)
		case strings.Contains(e.Text, prev.Text):
			prev.Text = e.Text
			prev.Duration = max(prev.Duration, e.Start+e.Duration-prev.Start)
		default:
			result = append(result, e)
		}
	}

	return result
}

// joinTranscript flattens entries into one text for prompts.
func joinTranscript(entries []TranscriptEntry) string {
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	return strings.Join(texts, " ")
}

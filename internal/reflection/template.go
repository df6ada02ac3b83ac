package reflection

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Placeholders every prompt template must contain.
const (
	DatePlaceholder    = "{date}"
	ContentPlaceholder = "{bible_content}"
)

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `Please create a thoughtful and personal Bible diary entry for {date}, based on today's Gospel.

Today's Gospel:
{bible_content}

Please write a diary entry that:
1. Reflects on the key themes and message of the passage
2. Connects the teaching to ordinary daily life
3. Offers one practical application for today
4. Keeps a warm, contemplative and encouraging tone
5. Is approximately 300-500 words long

Write it as a personal diary entry in Markdown. Do not repeat the passage.
`

// LoadTemplate reads a prompt template from path, or returns DefaultTemplate
// when path is empty. The template is validated before it is returned.
func LoadTemplate(path string) (string, error) {
	tmpl := DefaultTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt template %s: %w", path, err)
		}
		tmpl = string(data)
	}
	if err := ValidateTemplate(tmpl); err != nil {
		return "", err
	}
	return tmpl, nil
}

// ValidateTemplate checks that both placeholders are present.
func ValidateTemplate(tmpl string) error {
	var missing []string
	for _, p := range []string{DatePlaceholder, ContentPlaceholder} {
		if !strings.Contains(tmpl, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &GenerationError{
			Kind: ErrTemplateMissingPlaceholder,
			Err:  fmt.Errorf("missing %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// RenderPrompt substitutes date and excerpt into tmpl in a single pass, so
// placeholder text inside the excerpt is left alone.
func RenderPrompt(tmpl, date, excerpt string) (string, error) {
	if err := ValidateTemplate(tmpl); err != nil {
		return "", err
	}
	r := strings.NewReplacer(DatePlaceholder, date, ContentPlaceholder, excerpt)
	return r.Replace(tmpl), nil
}

const ellipsis = " …"

// Shorten cuts text to at most limit runes, preferring a paragraph break,
// then a sentence end, then a word boundary, and marks the cut with an
// ellipsis that counts towards the limit. It reports whether anything was
// removed.
func Shorten(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}

	runes := []rune(text)
	room := limit - utf8.RuneCountInString(ellipsis)
	if room <= 0 {
		return string(runes[:limit]), true
	}

	cut := string(runes[:room])
	half := len(cut) / 2

	switch {
	case strings.LastIndex(cut, "\n\n") > half:
		cut = cut[:strings.LastIndex(cut, "\n\n")]
	case lastSentenceEnd(cut) > half:
		cut = cut[:lastSentenceEnd(cut)+1]
	case strings.LastIndexAny(cut, " \n") > 0:
		cut = cut[:strings.LastIndexAny(cut, " \n")]
	}

	return strings.TrimSpace(cut) + ellipsis, true
}

// lastSentenceEnd returns the byte index of the last '.', '!' or '?' that is
// followed by whitespace or ends the string, or -1.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if i == len(s)-1 || s[i+1] == ' ' || s[i+1] == '\n' {
				return i
			}
		}
	}
	return -1
}

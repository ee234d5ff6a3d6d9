package encoding

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	imageOnlyLine = regexp.MustCompile(
		`^(?:(?:\[\s*!\[[^\]]*\](?:\([^)]*\)|\[[^\]]*\])\s*\](?:\([^)]*\)|\[[^\]]*\])|!\[[^\]]*\](?:\([^)]*\)|\[[^\]]*\]))\s*)+$`,
	)
	htmlTag = regexp.MustCompile(`<!--.*?-->|</?[A-Za-z][A-Za-z0-9-]*(?:\s[^<>]*)?/?>`)
)

// Sanitize prepares raw README lines for display in a single pass.
//
// Outside fenced code blocks it trims trailing whitespace, strips HTML tags
// while keeping the text between them, turns image-only lines into blanks,
// collapses runs of blank lines and removes leading and trailing blanks.
// Lines without a tag, ASCII art included, are left as they are. Fenced
// blocks are kept verbatim apart from trailing whitespace on the fence
// markers. Sanitize(Sanitize(x)) equals Sanitize(x).
func Sanitize(lines []string) []string {
	out := make([]string, 0, len(lines))
	var fence fenceState
	blank := true
	for _, line := range lines {
		if fence.open {
			if fence.closes(line) {
				fence = fenceState{}
				out = append(out, strings.TrimRightFunc(line, unicode.IsSpace))
				blank = false
				continue
			}
			out = append(out, line)
			blank = false
			continue
		}

		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if _, ok := openFence(line); !ok {
			line = stripTags(line)
			if isImageOnly(line) {
				line = ""
			}
		}
		if f, ok := openFence(line); ok {
			fence = f
			out = append(out, line)
			blank = false
			continue
		}
		if line == "" {
			if !blank {
				out = append(out, line)
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	if !fence.open {
		for len(out) > 0 && out[len(out)-1] == "" {
			out = out[:len(out)-1]
		}
	}
	return out
}

// stripTags removes HTML tags and comments from line and trims the rest.
// Lines without a '<' are returned unchanged.
func stripTags(line string) string {
	if strings.IndexByte(line, '<') < 0 || !htmlTag.MatchString(line) {
		return line
	}
	for htmlTag.MatchString(line) {
		line = htmlTag.ReplaceAllString(line, "")
	}
	return strings.TrimSpace(line)
}

type fenceState struct {
	open   bool
	marker byte
	width  int
}

func openFence(line string) (fenceState, bool) {
	s := strings.TrimLeft(line, " \t")
	if len(s) < 3 || (s[0] != '`' && s[0] != '~') {
		return fenceState{}, false
	}
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	if n < 3 {
		return fenceState{}, false
	}
	if s[0] == '`' && strings.Contains(s[n:], "`") {
		return fenceState{}, false
	}
	return fenceState{open: true, marker: s[0], width: n}, true
}

func (f fenceState) closes(line string) bool {
	s := strings.TrimSpace(line)
	if len(s) < f.width {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != f.marker {
			return false
		}
	}
	return true
}

func isImageOnly(line string) bool {
	return imageOnlyLine.MatchString(strings.TrimSpace(line))
}

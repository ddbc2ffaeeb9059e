package formatter

import (
	"strings"
)

const (
	scriptPrefix   = "Script("
	templatePrefix = "Template("
)

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentPath
	segmentScript
)

type segment struct {
	kind        segmentKind
	text        string
	transforms  []Transform
	fallback    string
	hasFallback bool
}

// parse splits an expression into literal text and ${...} placeholders.
// Unknown transform names fail the whole expression.
func parse(expression string) ([]segment, error) {
	var segments []segment

	rest := expression

	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			break
		}

		end := closingBrace(rest, start+2)
		if end < 0 {
			break
		}

		if start > 0 {
			segments = append(segments, segment{kind: segmentLiteral, text: rest[:start]})
		}

		placeholder, err := parsePlaceholder(rest[start+2 : end])
		if err != nil {
			return nil, err
		}

		segments = append(segments, placeholder)
		rest = rest[end+1:]
	}

	if rest != "" {
		segments = append(segments, segment{kind: segmentLiteral, text: rest})
	}

	return segments, nil
}

func closingBrace(value string, from int) int {
	depth := 1

	for i := from; i < len(value); i++ {
		switch value[i] {
		case '{':
			depth++
		case '}':
			depth--

			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

func parsePlaceholder(content string) (segment, error) {
	if source, ok := unwrap(content, scriptPrefix); ok {
		return segment{kind: segmentScript, text: source}, nil
	}

	result := segment{kind: segmentPath}

	if path, fallback, found := strings.Cut(content, "?"); found {
		content = path
		result.fallback = strings.TrimSpace(fallback)
		result.hasFallback = true
	}

	parts := strings.Split(content, "|")

	result.text = strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		fn, err := lookupTransform(name)
		if err != nil {
			return segment{}, err
		}

		result.transforms = append(result.transforms, fn)
	}

	return result, nil
}

// unwrap returns the body of "Prefix(body)", ignoring surrounding whitespace.
func unwrap(value string, prefix string) (string, bool) {
	trimmed := strings.TrimSpace(value)

	if !strings.HasPrefix(trimmed, prefix) || !strings.HasSuffix(trimmed, ")") {
		return "", false
	}

	return trimmed[len(prefix) : len(trimmed)-1], true
}

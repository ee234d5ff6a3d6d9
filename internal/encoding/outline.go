package encoding

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one entry of a README outline. Line is zero-based.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

// options represents configuration options for outlining
type options struct {
	maxLevel int
}

// Option is a function that configures options
type Option func(*options)

// WithMaxLevel skips headings deeper than level.
func WithMaxLevel(level int) Option {
	return func(o *options) {
		o.maxLevel = level
	}
}

// Outline parses lines as markdown and returns its headings in document order.
func Outline(lines []string, opts ...Option) ([]Heading, error) {
	options := &options{maxLevel: 6}
	for _, opt := range opts {
		opt(options)
	}

	in := []byte(strings.Join(lines, "\n"))
	root := goldmark.New().Parser().Parse(text.NewReader(in))

	var headings []Heading
	err := ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		n, ok := node.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if n.Level > options.maxLevel {
			return ast.WalkSkipChildren, nil
		}
		headingText, err := DecodeTextFromNode(n, in)
		if err != nil {
			return ast.WalkStop, fmt.Errorf("failed to decode heading text: %w", err)
		}
		line := 0
		if n.Lines().Len() > 0 {
			line = bytes.Count(in[:n.Lines().At(0).Start], []byte("\n"))
		}
		headings = append(headings, Heading{
			Level: n.Level,
			Text:  strings.TrimSpace(headingText),
			Line:  line,
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return headings, nil
}

// DecodeTextFromNode extracts text content from an AST node
func DecodeTextFromNode(node ast.Node, src []byte) (string, error) {
	var text strings.Builder
	err := ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if textNode, ok := n.(*ast.Text); ok {
				text.Write(textNode.Segment.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return text.String(), nil
}

// Package casebook reads end-to-end compiler cases written as Markdown.
//
// A case starts at a heading of the form "Test: name" and owns every fenced
// block up to the next such heading. The c fence holds the program, the
// remaining fences state what compiling and running it must produce:
//
//	## Test: precedence
//	```c
//	int main() { return 2 + 3 * 4; }
//	```
//	```exit
//	14
//	```
package casebook

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type Fence string

const (
	FenceSource       Fence = "c"
	FenceExit         Fence = "exit"
	FenceStdout       Fence = "stdout"
	FenceCompileError Fence = "compile-error"
	FenceFault        Fence = "fault"
)

func (f Fence) isExpectation() bool {
	switch f {
	case FenceExit, FenceStdout, FenceCompileError, FenceFault:
		return true
	}
	return false
}

type Expectation struct {
	Fence   Fence
	Content string
	Line    int
}

// Case is one program and everything it is expected to produce.
type Case struct {
	Name   string
	Source string
	Line   int

	Expectations []Expectation
}

// Expect returns the expectation of the given fence, if the case has one.
func (c *Case) Expect(fence Fence) (Expectation, bool) {
	for _, expectation := range c.Expectations {
		if expectation.Fence == fence {
			return expectation, true
		}
	}
	return Expectation{}, false
}

// ExitCode parses the exit fence.
func (c *Case) ExitCode() (int64, bool, error) {
	expectation, ok := c.Expect(FenceExit)
	if !ok {
		return 0, false, nil
	}

	code, err := strconv.ParseInt(strings.TrimSpace(expectation.Content), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("line %d: invalid exit code in test '%s': %w", expectation.Line, c.Name, err)
	}
	return code, true, nil
}

// ErrorExpectation splits a compile-error or fault fence of the form
// "Kind" or "Kind: message fragment".
func (e Expectation) ErrorExpectation() (kind string, message string) {
	kind, message, _ = strings.Cut(strings.TrimSpace(e.Content), ":")
	return strings.TrimSpace(kind), strings.TrimSpace(message)
}

func Load(path string) ([]Case, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

func Parse(source []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var cases []Case
	var current *Case

	flush := func() error {
		if current == nil {
			return nil
		}
		if err := validate(current); err != nil {
			return err
		}
		cases = append(cases, *current)
		current = nil
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := headingText(n, source)
			name, ok := strings.CutPrefix(heading, "Test: ")
			if !ok {
				return ast.WalkContinue, nil
			}
			if err := flush(); err != nil {
				return ast.WalkStop, err
			}
			current = &Case{Name: strings.TrimSpace(name), Line: lineOf(n, source)}

		case *ast.FencedCodeBlock:
			fence := Fence(n.Language(source))
			line := lineOf(n, source)

			if fence == "" {
				return ast.WalkContinue, nil
			}
			if fence != FenceSource && !fence.isExpectation() {
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence '%s'", line, fence)
			}
			if current == nil {
				return ast.WalkStop, fmt.Errorf("line %d: %s fence outside of a test", line, fence)
			}

			content := blockContent(n, source)
			if fence == FenceSource {
				if current.Source != "" {
					return ast.WalkStop, fmt.Errorf("line %d: second c fence in test '%s'", line, current.Name)
				}
				current.Source = content
				return ast.WalkContinue, nil
			}

			if _, ok := current.Expect(fence); ok {
				return ast.WalkStop, fmt.Errorf("line %d: second %s fence in test '%s'", line, fence, current.Name)
			}
			current.Expectations = append(current.Expectations, Expectation{
				Fence:   fence,
				Content: content,
				Line:    line,
			})
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return cases, nil
}

func validate(c *Case) error {
	if c.Source == "" {
		return fmt.Errorf("line %d: test '%s' has no c fence", c.Line, c.Name)
	}
	if len(c.Expectations) == 0 {
		return fmt.Errorf("line %d: test '%s' has no expectations", c.Line, c.Name)
	}

	_, compileError := c.Expect(FenceCompileError)
	_, fault := c.Expect(FenceFault)
	if compileError && len(c.Expectations) > 1 {
		return fmt.Errorf("line %d: test '%s' expects a compile error and something else", c.Line, c.Name)
	}
	if _, exit := c.Expect(FenceExit); exit && fault {
		return fmt.Errorf("line %d: test '%s' expects both an exit code and a fault", c.Line, c.Name)
	}
	return nil
}

func headingText(heading *ast.Heading, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(heading, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func blockContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(source))
	}
	return buf.String()
}

// lineOf is the 1-based line where node's content starts. For a fence that
// is the line after the opening marker.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	return bytes.Count(source[:node.Lines().At(0).Start], []byte("\n")) + 1
}

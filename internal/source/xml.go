// Package source reads a dm+d release: it finds the release directory and
// its per-fragment XML files, and classifies their contents into groups of
// records of one catalogue kind each.
package source

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrMissingComment is returned when a document does not open with the
// generator comment every release file carries.
var ErrMissingComment = errors.New("source: document does not start with a comment")

// Element is a parsed XML element. Text holds the element's own character
// data; it is only meaningful for leaves.
type Element struct {
	Tag      string
	Text     string
	Children []*Element
}

// Child returns the first child with the given tag.
func (e *Element) Child(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Parse reads a whole document into an element tree.
//
// The first node inside the root element must be a comment. Release files
// always start with one; a document without it is not a release file.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root    *Element
		stack   []*Element
		leading bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Tag: t.Name.Local}
			switch {
			case len(stack) == 0 && root != nil:
				return nil, fmt.Errorf("parse xml: second root element <%s>", el.Tag)
			case len(stack) == 0:
				root = el
			default:
				if len(stack) == 1 && !leading {
					return nil, fmt.Errorf("%w: found <%s>", ErrMissingComment, el.Tag)
				}
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			if len(stack) == 1 && !leading && strings.TrimSpace(string(t)) != "" {
				return nil, fmt.Errorf("%w: found text", ErrMissingComment)
			}
			cur := stack[len(stack)-1]
			cur.Text += string(t)

		case xml.Comment:
			if len(stack) == 1 {
				leading = true
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("parse xml: no root element")
	}
	if !leading {
		return nil, ErrMissingComment
	}
	return root, nil
}

// ParseFile is Parse on a named file.
func ParseFile(path string) (*Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

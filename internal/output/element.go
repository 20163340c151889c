// Package output renders resolved records into Jenkins' XML config
// format. Elements keep attributes and children in insertion order so a
// record always renders to the same bytes.
package output

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Element is one node of the XML document under construction.
type Element struct {
	Tag      string
	attrs    []attr
	Text     string
	children []*Element
}

type attr struct {
	name  string
	value string
}

// New creates a free-standing element.
func New(tag string) *Element {
	return &Element{Tag: tag}
}

// Child appends and returns a new child element.
func (e *Element) Child(tag string) *Element {
	c := New(tag)
	e.children = append(e.children, c)
	return c
}

// Append attaches an existing element as the last child.
func (e *Element) Append(c *Element) {
	e.children = append(e.children, c)
}

// SetAttr sets an attribute, replacing any previous value under the same
// name without disturbing attribute order.
func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.attrs {
		if e.attrs[i].name == name {
			e.attrs[i].value = value
			return e
		}
	}
	e.attrs = append(e.attrs, attr{name: name, value: value})
	return e
}

// SetText sets the element's character content. Elements with children
// render the text before the first child.
func (e *Element) SetText(text string) *Element {
	e.Text = text
	return e
}

// TextChild appends a child carrying only character content. It is the
// common case when building config sections.
func (e *Element) TextChild(tag, text string) *Element {
	c := e.Child(tag)
	c.Text = text
	return e
}

// Children returns the child list in insertion order.
func (e *Element) Children() []*Element {
	return e.children
}

// Find returns the first direct child with the given tag.
func (e *Element) Find(tag string) (*Element, bool) {
	for _, c := range e.children {
		if c.Tag == tag {
			return c, true
		}
	}
	return nil, false
}

// Render writes the element as an indented XML document, including the
// declaration header.
func (e *Element) Render() string {
	var b strings.Builder
	b.WriteString(xml.Header)
	e.render(&b, 0)
	return b.String()
}

func (e *Element) render(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(e.Tag)
	for _, a := range e.attrs {
		fmt.Fprintf(b, " %s=\"%s\"", a.name, attrEscaper.Replace(a.value))
	}

	if e.Text == "" && len(e.children) == 0 {
		b.WriteString("/>\n")
		return
	}

	b.WriteByte('>')
	if e.Text != "" {
		b.WriteString(escapeText(e.Text))
	}
	if len(e.children) > 0 {
		b.WriteByte('\n')
		for _, c := range e.children {
			c.render(b, depth+1)
		}
		b.WriteString(indent)
	}
	b.WriteString("</" + e.Tag + ">\n")
}

// Jenkins keeps literal newlines inside text nodes, so only markup
// characters are escaped.
var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

package bitfile

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// node is a generic XML element. The bitfile schema is large and mostly
// irrelevant here, so the document is decoded into a plain tree and walked
// by name.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*node    `xml:",any"`
}

func (n *node) name() string {
	return n.XMLName.Local
}

// child returns the first child element with the given local name.
func (n *node) child(name string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// find follows a path of child names.
func (n *node) find(path ...string) *node {
	cur := n
	for _, name := range path {
		cur = cur.child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) text() string {
	return strings.TrimSpace(n.Text)
}

// firstElement returns the first child element, if any.
func (n *node) firstElement() *node {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// fields resolves required children relative to a node, reporting the
// first missing or unparsable one as a MalformedDocumentError whose Field
// is prefixed with the node's path.
type fields struct {
	n    *node
	path string
}

func (f fields) node(name string) (*node, error) {
	c := f.n.child(name)
	if c == nil {
		return nil, &MalformedDocumentError{Field: f.path + "/" + name}
	}
	return c, nil
}

func (f fields) text(name string) (string, error) {
	c, err := f.node(name)
	if err != nil {
		return "", err
	}
	return c.text(), nil
}

func (f fields) flag(name string) (bool, error) {
	s, err := f.text(name)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(s, "true"), nil
}

func (f fields) number(name string) (int, error) {
	s, err := f.text(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &MalformedDocumentError{Field: f.path + "/" + name, Err: err}
	}
	return v, nil
}

func (f fields) unsigned(name string) (uint32, error) {
	s, err := f.text(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, &MalformedDocumentError{Field: f.path + "/" + name, Err: err}
	}
	return uint32(v), nil
}

// Package xml builds, queries and prints XML documents on top of xmlquery
// nodes. Export formats use the builder; tests and audits read the result
// back with XPath.
package xml

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document is an XML document.
type Document struct {
	root *xmlquery.Node
}

// Node is an element within a Document.
type Node struct {
	node *xmlquery.Node
}

// Attr is a name/value pair. A name may carry a prefix ("xml:lang").
type Attr struct {
	Name  string
	Value string
}

// NewDocument creates a document with an XML declaration and a root element.
func NewDocument(rootName string, attrs ...Attr) (*Document, *Node) {
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}

	decl := &xmlquery.Node{Type: xmlquery.DeclarationNode, Data: "xml"}
	xmlquery.AddAttr(decl, "version", "1.0")
	xmlquery.AddAttr(decl, "encoding", "UTF-8")
	xmlquery.AddChild(doc, decl)

	root := newElement(rootName, attrs)
	xmlquery.AddChild(doc, root)
	return &Document{root: doc}, &Node{node: root}
}

func newElement(name string, attrs []Attr) *xmlquery.Node {
	n := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	if i := strings.IndexByte(name, ':'); i > 0 {
		n.Prefix, n.Data = name[:i], name[i+1:]
	}
	for _, a := range attrs {
		xmlquery.AddAttr(n, a.Name, a.Value)
	}
	return n
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// XPathFirst returns the first node matching expr, or nil.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Count evaluates expr and returns the number of nodes it selects. Numeric
// expressions such as count(//verse) return their value.
func (d *Document) Count(expr string) (int, error) {
	exp, err := xpath.Compile(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid xpath: %w", err)
	}

	switch v := exp.Evaluate(xmlquery.CreateXPathNavigator(d.root)).(type) {
	case float64:
		return int(v), nil
	case *xpath.NodeIterator:
		n := 0
		for v.MoveNext() {
			n++
		}
		return n, nil
	default:
		return 0, fmt.Errorf("xpath %q does not select nodes", expr)
	}
}

// Bytes returns the document indented with two spaces.
func (d *Document) Bytes() []byte {
	if d.root == nil {
		return nil
	}
	var buf bytes.Buffer
	writeNode(&buf, d.root, 0, "  ")
	return buf.Bytes()
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func qualifiedName(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func writeAttrs(w *bytes.Buffer, attrs []xmlquery.Attr) {
	for _, attr := range attrs {
		w.WriteByte(' ')
		w.WriteString(qualifiedName(attr.Name.Space, attr.Name.Local))
		w.WriteString(`="`)
		attrEscaper.WriteString(w, attr.Value)
		w.WriteByte('"')
	}
}

// writeNode prints n. Elements holding only text stay on one line; elements
// with element children put each child on its own indented line.
func writeNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	pad := strings.Repeat(indent, depth)

	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeNode(w, child, depth, indent)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		writeAttrs(w, n.Attr)
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		name := qualifiedName(n.Prefix, n.Data)
		w.WriteString(pad)
		w.WriteByte('<')
		w.WriteString(name)
		writeAttrs(w, n.Attr)

		if n.FirstChild == nil {
			w.WriteString("/>\n")
			return
		}
		w.WriteByte('>')

		nested := false
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode || child.Type == xmlquery.CommentNode {
				nested = true
				break
			}
		}

		if !nested {
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				writeInline(w, child)
			}
		} else {
			w.WriteByte('\n')
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == xmlquery.TextNode {
					if text := strings.TrimSpace(child.Data); text != "" {
						w.WriteString(pad + indent)
						textEscaper.WriteString(w, text)
						w.WriteByte('\n')
					}
					continue
				}
				writeNode(w, child, depth+1, indent)
			}
			w.WriteString(pad)
		}

		w.WriteString("</")
		w.WriteString(name)
		w.WriteString(">\n")

	case xmlquery.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			textEscaper.WriteString(w, text)
		}

	case xmlquery.CharDataNode:
		w.WriteString(pad)
		writeInline(w, n)
		w.WriteByte('\n')

	case xmlquery.CommentNode:
		w.WriteString(pad)
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->\n")
	}
}

func writeInline(w *bytes.Buffer, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.TextNode:
		textEscaper.WriteString(w, n.Data)
	case xmlquery.CharDataNode:
		w.WriteString("<![CDATA[")
		w.WriteString(n.Data)
		w.WriteString("]]>")
	}
}

// AddElement appends a child element and returns it.
func (n *Node) AddElement(name string, attrs ...Attr) *Node {
	child := newElement(name, attrs)
	xmlquery.AddChild(n.node, child)
	return &Node{node: child}
}

// SetText replaces the node's children with a single text node.
func (n *Node) SetText(text string) *Node {
	for child := n.node.FirstChild; child != nil; {
		next := child.NextSibling
		xmlquery.RemoveFromTree(child)
		child = next
	}
	xmlquery.AddChild(n.node, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
	return n
}

// SetAttr sets an attribute, replacing an existing value.
func (n *Node) SetAttr(name, value string) *Node {
	n.node.SetAttr(name, value)
	return n
}

// Name returns the element name without prefix.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}

	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Attr returns the value of a specific attribute.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

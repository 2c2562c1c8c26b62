package process

import (
	"strings"

	"golang.org/x/net/html"
)

// Small traversal helpers shared by the HTML-scraping processors.

// findFirst returns the first element with the given tag whose class list
// contains every class in want ("" matches any class list).
func findFirst(n *html.Node, tag string, want ...string) *html.Node {
	var found *html.Node
	walk(n, func(node *html.Node) bool {
		if matches(node, tag, want...) {
			found = node
			return false
		}
		return true
	})
	return found
}

// findAll returns every element with the given tag and classes, in
// document order.
func findAll(n *html.Node, tag string, want ...string) []*html.Node {
	var out []*html.Node
	walk(n, func(node *html.Node) bool {
		if matches(node, tag, want...) {
			out = append(out, node)
		}
		return true
	})
	return out
}

func matches(n *html.Node, tag string, want ...string) bool {
	if n.Type != html.ElementNode || n.Data != tag {
		return false
	}
	if len(want) == 0 {
		return true
	}
	classes := strings.Fields(attr(n, "class"))
	for _, w := range want {
		ok := false
		for _, c := range classes {
			if c == w {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// walk visits nodes depth-first; fn returning false stops the traversal.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// attr returns an attribute value, "" when absent.
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// text collects the concatenated text content under n.
func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) bool {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		return true
	})
	return b.String()
}

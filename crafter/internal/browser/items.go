package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/infcraft/craft"
)

// idAttr tags every captured element with a stable handle. It carries the
// element's own id when it has one and a generated token otherwise, so
// elements without ids can still be resolved and diffed.
const idAttr = "data-infcraft-id"

// ParseItemsHTML turns the concatenated outer HTML of the captured item
// elements into items, in document order. Each top-level element of the
// fragment is one item; elements without a handle are dropped.
func ParseItemsHTML(fragment string) ([]craft.Item, error) {
	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctxNode)
	if err != nil {
		return nil, fmt.Errorf("browser: parse items: %w", err)
	}

	items := make([]craft.Item, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		id := attr(n, idAttr)
		if id == "" {
			id = attr(n, "id")
		}
		if id == "" {
			continue
		}
		text := textContent(n)
		icon, name := craft.ParseItemText(text)
		items = append(items, craft.Item{ID: id, Name: name, Icon: icon, Text: text})
	}
	return items, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates descendant text the way the DOM property does,
// skipping script and style bodies.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

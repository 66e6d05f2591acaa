// Package dom is a selector shorthand over parsed HTML documents.
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Query returns the nodes matching selector in document order. It searches
// the first root when one is given and the bound document otherwise. An
// invalid selector matches nothing.
type Query func(selector string, root ...*goquery.Selection) []*html.Node

func NewQuery(doc *goquery.Document) Query {
	return func(selector string, root ...*goquery.Selection) []*html.Node {
		scope := doc.Selection
		if len(root) > 0 && root[0] != nil {
			scope = root[0]
		}
		found := scope.Find(selector).Nodes
		out := make([]*html.Node, len(found))
		copy(out, found)
		return out
	}
}

// Compile reports whether selector is valid.
func Compile(selector string) error {
	_, err := cascadia.Compile(selector)
	return err
}

// Text returns the trimmed text content of each node.
func Text(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.TrimSpace(goquery.NewDocumentFromNode(n).Text()))
	}
	return out
}

package appmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/itchyny/gojq"
	"golang.org/x/net/html"
)

// Query runs the jq filter expr over the object at <base>/apps/<id>/<path>
// and returns every value it produces. A missing object yields no values.
func (c *Client) Query(ctx context.Context, id, path, expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}

	data, err := c.raw(ctx, id, path)
	if err != nil || data == nil {
		return nil, err
	}

	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse %s/%s: %w", id, path, err)
	}

	iter := q.RunWithContext(ctx, input)
	var results []any
	for {
		res, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := res.(error); ok {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// PlainContent returns the announcement content for lang with markup
// removed. Block elements and <br> become line breaks.
func (a Announcement) PlainContent(lang string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(a.Content.Get(lang)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, n := range doc.Selection.Nodes {
		writeText(&sb, n)
	}

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "blockquote": true, "pre": true,
}

func writeText(sb *strings.Builder, root *html.Node) {
	type item struct {
		n     *html.Node
		close bool
	}
	stack := []item{{n: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.close {
			sb.WriteByte('\n')
			continue
		}

		n := it.n
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			continue
		case html.ElementNode:
			if n.Data == "br" {
				sb.WriteByte('\n')
				continue
			}
			if n.Data == "script" || n.Data == "style" {
				continue
			}
			if blockElements[n.Data] {
				sb.WriteByte('\n')
				stack = append(stack, item{n: n, close: true})
			}
		}

		// Push children in reverse so they pop in document order.
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, item{n: c})
		}
	}
}

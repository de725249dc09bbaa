package crawler

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// PageLinks is the outcome of parsing one HTML document.
type PageLinks struct {
	// Title is the page title from the <title> tag.
	Title string

	// Hrefs holds the raw href values of every anchor, in document
	// order, unresolved. Resolution and scope filtering belong to the
	// normalizer, which knows the page's post-redirect base URL.
	Hrefs []string
}

// ExtractLinks parses HTML content and collects anchor targets.
//
// Design decision: we use golang.org/x/net/html rather than regex
// because it correctly handles the malformed HTML that is common on the
// web and gives a proper DOM to walk. Parse errors are rare: the parser
// implements the HTML5 recovery algorithm and accepts almost anything.
func ExtractLinks(content io.Reader) (*PageLinks, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &PageLinks{Hrefs: make([]string, 0)}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				if href := cleanHref(getAttr(n, "href")); href != "" {
					result.Hrefs = append(result.Hrefs, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// cleanHref drops anchor values that can never name a page.
func cleanHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}
	return href
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

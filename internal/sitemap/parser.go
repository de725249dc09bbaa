package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrEmptyDocument is returned when a document yields no URLs through
// either the strict or the lenient path.
var ErrEmptyDocument = errors.New("sitemap: document contains no URLs")

// Document is the parsed content of one sitemap file.
type Document struct {
	// PageURLs holds the page locations declared by a urlset.
	PageURLs []string

	// ChildSitemaps holds the nested sitemap locations declared by a
	// sitemapindex, plus any fallback-extracted locations that look
	// like sitemap files themselves.
	ChildSitemaps []string

	// UsedFallback reports that strict XML parsing failed and the
	// document was salvaged by lenient extraction.
	UsedFallback bool
}

// urlsetXML mirrors the <urlset> document shape. Only <loc> matters;
// lastmod, changefreq, and priority are advisory and ignored.
type urlsetXML struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []locXML `xml:"url"`
}

// sitemapindexXML mirrors the <sitemapindex> document shape.
type sitemapindexXML struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []locXML `xml:"sitemap"`
}

type locXML struct {
	Loc string `xml:"loc"`
}

// locPattern extracts <loc> contents from documents that do not survive
// strict XML parsing. Case-insensitive, tolerant of whitespace, and
// non-greedy so adjacent entries do not merge.
var locPattern = regexp.MustCompile(`(?is)<loc>\s*(.+?)\s*</loc>`)

// Parse interprets one sitemap document. Gzipped input is inflated
// first. Well-formed documents are classified by their root element;
// anything else goes through lenient <loc> extraction, with locations
// ending in .xml or .xml.gz treated as nested sitemaps.
func Parse(data []byte) (*Document, error) {
	data, err := maybeGunzip(data)
	if err != nil {
		return nil, err
	}

	if doc, ok := parseStrict(data); ok {
		if len(doc.PageURLs) == 0 && len(doc.ChildSitemaps) == 0 {
			return nil, ErrEmptyDocument
		}
		return doc, nil
	}

	doc := parseLenient(data)
	if len(doc.PageURLs) == 0 && len(doc.ChildSitemaps) == 0 {
		return nil, ErrEmptyDocument
	}
	return doc, nil
}

// parseStrict attempts well-formed XML parsing. The second return is
// false when the document is not valid XML or has an unknown root.
func parseStrict(data []byte) (*Document, bool) {
	root, ok := rootElement(data)
	if !ok {
		return nil, false
	}

	switch root {
	case "urlset":
		var us urlsetXML
		if err := xml.Unmarshal(data, &us); err != nil {
			return nil, false
		}
		doc := &Document{}
		for _, u := range us.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				doc.PageURLs = append(doc.PageURLs, loc)
			}
		}
		return doc, true
	case "sitemapindex":
		var si sitemapindexXML
		if err := xml.Unmarshal(data, &si); err != nil {
			return nil, false
		}
		doc := &Document{}
		for _, s := range si.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				doc.ChildSitemaps = append(doc.ChildSitemaps, loc)
			}
		}
		return doc, true
	default:
		return nil, false
	}
}

// rootElement returns the local name of the first start element.
func rootElement(data []byte) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, true
		}
	}
}

// parseLenient extracts every <loc> value by pattern matching. Entity
// references are decoded because the values never went through an XML
// decoder. Locations that look like sitemap files are classified as
// children so index recursion still works on broken indexes.
func parseLenient(data []byte) *Document {
	doc := &Document{UsedFallback: true}
	for _, m := range locPattern.FindAllSubmatch(data, -1) {
		loc := strings.TrimSpace(string(m[1]))
		loc = strings.TrimPrefix(loc, "<![CDATA[")
		loc = strings.TrimSuffix(loc, "]]>")
		loc = html.UnescapeString(strings.TrimSpace(loc))
		if loc == "" {
			continue
		}
		if looksLikeSitemap(loc) {
			doc.ChildSitemaps = append(doc.ChildSitemaps, loc)
		} else {
			doc.PageURLs = append(doc.PageURLs, loc)
		}
	}
	return doc
}

// looksLikeSitemap reports whether a lenient-extracted location refers
// to another sitemap file rather than a page.
func looksLikeSitemap(loc string) bool {
	lower := strings.ToLower(loc)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".xml") || strings.HasSuffix(lower, ".xml.gz")
}

// maybeGunzip inflates gzip-compressed input, passing everything else
// through unchanged. Sitemaps are commonly published as sitemap.xml.gz.
func maybeGunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

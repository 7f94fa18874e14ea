package generator

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is what the prompts need to know about the target website.
type Page struct {
	URL         string
	Title       string
	Description string
	Headings    []string
	Text        string
}

const (
	maxHeadings = 20
	maxText     = 2000
)

// ParsePage extracts title, meta description, h1-h3 headings and a bounded
// amount of paragraph text from an HTML document.
func ParsePage(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, err
	}

	var (
		p    Page
		text strings.Builder
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Svg:
				return
			case atom.Title:
				if p.Title == "" {
					p.Title = collapse(textOf(n))
				}
				return
			case atom.Meta:
				if strings.EqualFold(attr(n, "name"), "description") && p.Description == "" {
					p.Description = collapse(attr(n, "content"))
				}
			case atom.H1, atom.H2, atom.H3:
				if h := collapse(textOf(n)); h != "" && len(p.Headings) < maxHeadings {
					p.Headings = append(p.Headings, h)
				}
				return
			case atom.P, atom.Li:
				if text.Len() < maxText {
					if t := collapse(textOf(n)); t != "" {
						text.WriteString(t)
						text.WriteByte('\n')
					}
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.Text = text.String()
	if len(p.Text) > maxText {
		p.Text = strings.ToValidUTF8(p.Text[:maxText], "")
	}
	return p, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

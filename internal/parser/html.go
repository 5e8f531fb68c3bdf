package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Horizontal rules act as page breaks.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) ([]*layout.Element, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	b := newPageBuilder()

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			// Loose text outside block elements, e.g. directly inside a <div>.
			b.add(layout.TypeText, strings.Join(strings.Fields(n.Data), " "), "")
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				b.addHeading(int(n.Data[1]-'0'), textContent(n))
				return
			case "p", "li", "blockquote", "pre", "dt", "dd", "caption":
				b.add(layout.TypeText, textContent(n), "")
				return
			case "table":
				b.add(layout.TypeTable, "", markdownTable(htmlTableRows(n)))
				return
			case "figure":
				b.add(layout.TypeFigure, "", figureCaption(n))
				return
			case "img":
				b.add(layout.TypeFigure, "", imageLabel(n))
				return
			case "math":
				label := attr(n, "alttext")
				if label == "" {
					label = textContent(n)
				}
				b.add(layout.TypeEquation, "", label)
				return
			case "hr":
				b.nextPage()
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	return b.elements, nil
}

func htmlTableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, textContent(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func figureCaption(fig *html.Node) string {
	var caption, alt string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "figcaption":
				caption = textContent(n)
				return
			case "img":
				if alt == "" {
					alt = imageLabel(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(fig)
	if caption != "" {
		return caption
	}
	return alt
}

func imageLabel(img *html.Node) string {
	if alt := attr(img, "alt"); alt != "" {
		return alt
	}
	if title := attr(img, "title"); title != "" {
		return title
	}
	return attr(img, "src")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

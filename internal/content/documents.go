package content

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

const maxZipEntry = 32 << 20

func extractPDF(data []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF")) {
		return "", errors.New("missing %PDF header")
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// extractDOCX reads word/document.xml, one line per <w:p> paragraph.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx container: %w", err)
	}
	body, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return "", err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		out  strings.Builder
		para strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx xml: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "t":
				var v string
				if err := dec.DecodeElement(&v, &se); err == nil {
					para.WriteString(v)
				}
			case "tab":
				para.WriteString(" ")
			case "br":
				para.WriteString("\n")
			}
		case xml.EndElement:
			if se.Name.Local == "p" {
				if line := strings.TrimSpace(para.String()); line != "" {
					out.WriteString(line)
					out.WriteString("\n\n")
				}
				para.Reset()
			}
		}
	}
	return out.String(), nil
}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Titles   []string `xml:"metadata>title"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// extractEPUB walks the spine of the package document and returns the book
// title with the text of every XHTML item in reading order.
func extractEPUB(data []byte) (string, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", fmt.Errorf("epub container: %w", err)
	}
	raw, err := readZipFile(zr, "META-INF/container.xml")
	if err != nil {
		return "", "", err
	}
	var container epubContainer
	if err := xml.Unmarshal(raw, &container); err != nil {
		return "", "", fmt.Errorf("epub container.xml: %w", err)
	}
	if len(container.Rootfiles) == 0 {
		return "", "", errors.New("epub has no rootfile")
	}
	opfPath := container.Rootfiles[0].FullPath
	raw, err = readZipFile(zr, opfPath)
	if err != nil {
		return "", "", err
	}
	var pkg epubPackage
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return "", "", fmt.Errorf("epub package: %w", err)
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if strings.Contains(item.MediaType, "html") {
			hrefs[item.ID] = item.Href
		}
	}
	base := path.Dir(opfPath)
	var parts []string
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		doc, err := readZipFile(zr, path.Join(base, href))
		if err != nil {
			return "", "", err
		}
		text, err := htmlText(doc)
		if err != nil {
			return "", "", fmt.Errorf("epub %s: %w", href, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	title := ""
	if len(pkg.Titles) > 0 {
		title = strings.TrimSpace(pkg.Titles[0])
	}
	return title, strings.Join(parts, "\n\n"), nil
}

var skippedElements = map[string]bool{"script": true, "style": true, "head": true, "nav": true}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}

// htmlText flattens an (X)HTML document to text, one line per block element.
func htmlText(doc []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				b.WriteString(s)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(root)
	return strings.TrimSpace(b.String()), nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxZipEntry))
	}
	return nil, fmt.Errorf("missing %s", name)
}

package services

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"slide-search-platform/models"
)

// PPTXParser extracts text, embedded images, speaker notes and layout names
// from PowerPoint (.pptx) files. A pptx is a zip archive of XML parts; slide
// relationships resolve notes, layout and image targets.
type PPTXParser struct{}

func NewPPTXParser() *PPTXParser {
	return &PPTXParser{}
}

func (p *PPTXParser) Extensions() []string {
	return []string{".pptx"}
}

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (p *PPTXParser) Parse(filePath string) ([]RawSlide, error) {
	if err := checkExists(filePath); err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pptx %s: %w", filePath, err)
	}
	defer zr.Close()

	parts := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read pptx part %s: %w", f.Name, err)
		}
		parts[f.Name] = data
	}

	slideNames := sortedSlideNames(parts)
	slides := make([]RawSlide, 0, len(slideNames))

	for _, name := range slideNames {
		slide, err := p.parseSlide(name, parts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		slides = append(slides, slide)
	}

	return slides, nil
}

func (p *PPTXParser) parseSlide(name string, parts map[string][]byte) (RawSlide, error) {
	var doc slideXML
	if err := xml.Unmarshal(parts[name], &doc); err != nil {
		return RawSlide{}, err
	}

	rels := parseRelationships(name, parts)

	slide := RawSlide{
		TextContent: doc.text(),
		Notes:       notesText(rels, parts),
		Layout:      layoutName(rels, parts),
		Images:      slideImages(doc, rels, parts),
	}
	return slide, nil
}

// text joins shape texts with newlines; runs within a paragraph concatenate.
func (d slideXML) text() string {
	var shapes []string
	for _, sp := range d.CSld.SpTree.Sp {
		if sp.TxBody == nil {
			continue
		}
		var paras []string
		for _, para := range sp.TxBody.P {
			var sb strings.Builder
			for _, r := range para.R {
				sb.WriteString(r.T)
			}
			if sb.Len() > 0 {
				paras = append(paras, sb.String())
			}
		}
		if len(paras) > 0 {
			shapes = append(shapes, strings.Join(paras, "\n"))
		}
	}
	return strings.Join(shapes, "\n")
}

func notesText(rels map[string]relationship, parts map[string][]byte) string {
	for _, rel := range rels {
		if !strings.HasSuffix(rel.Type, "/notesSlide") {
			continue
		}
		data, ok := parts[rel.Target]
		if !ok {
			return ""
		}
		var doc slideXML
		if err := xml.Unmarshal(data, &doc); err != nil {
			return ""
		}
		return doc.text()
	}
	return ""
}

func layoutName(rels map[string]relationship, parts map[string][]byte) string {
	for _, rel := range rels {
		if !strings.HasSuffix(rel.Type, "/slideLayout") {
			continue
		}
		data, ok := parts[rel.Target]
		if !ok {
			return ""
		}
		var layout struct {
			CSld struct {
				Name string `xml:"name,attr"`
			} `xml:"cSld"`
		}
		if err := xml.Unmarshal(data, &layout); err != nil {
			return ""
		}
		return layout.CSld.Name
	}
	return ""
}

// slideImages resolves each picture's blip relationship to its media bytes.
// Order follows document order, which matches visual stacking order.
func slideImages(doc slideXML, rels map[string]relationship, parts map[string][]byte) []models.SlideImage {
	var images []models.SlideImage
	for _, pic := range doc.CSld.SpTree.Pic {
		rel, ok := rels[pic.BlipFill.Blip.Embed]
		if !ok {
			continue
		}
		data, ok := parts[rel.Target]
		if !ok {
			continue
		}
		images = append(images, models.SlideImage{
			Data:   data,
			Format: strings.TrimPrefix(path.Ext(rel.Target), "."),
			Left:   pic.SpPr.Xfrm.Off.X,
			Top:    pic.SpPr.Xfrm.Off.Y,
			Width:  pic.SpPr.Xfrm.Ext.Cx,
			Height: pic.SpPr.Xfrm.Ext.Cy,
		})
	}
	return images
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

// parseRelationships reads a part's .rels file and resolves targets to
// absolute archive paths.
func parseRelationships(partName string, parts map[string][]byte) map[string]relationship {
	relsName := path.Join(path.Dir(partName), "_rels", path.Base(partName)+".rels")
	data, ok := parts[relsName]
	if !ok {
		return nil
	}

	var doc struct {
		Relationships []relationship `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil
	}

	rels := make(map[string]relationship, len(doc.Relationships))
	for _, rel := range doc.Relationships {
		rel.Target = path.Clean(path.Join(path.Dir(partName), rel.Target))
		rels[rel.ID] = rel
	}
	return rels
}

func sortedSlideNames(parts map[string][]byte) []string {
	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for name := range parts {
		m := slideNameRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{name: name, n: n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// slideXML models the subset of the presentation markup the parser reads.
// Element matching is by local name, so drawing and presentation namespaces
// need no explicit mapping.
type slideXML struct {
	CSld struct {
		SpTree struct {
			Sp  []shapeXML `xml:"sp"`
			Pic []picXML   `xml:"pic"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type shapeXML struct {
	TxBody *txBodyXML `xml:"txBody"`
}

type txBodyXML struct {
	P []paragraphXML `xml:"p"`
}

type paragraphXML struct {
	R []runXML `xml:"r"`
}

type runXML struct {
	T string `xml:"t"`
}

type picXML struct {
	BlipFill struct {
		Blip struct {
			Embed string `xml:"embed,attr"`
		} `xml:"blip"`
	} `xml:"blipFill"`
	SpPr struct {
		Xfrm struct {
			Off struct {
				X int64 `xml:"x,attr"`
				Y int64 `xml:"y,attr"`
			} `xml:"off"`
			Ext struct {
				Cx int64 `xml:"cx,attr"`
				Cy int64 `xml:"cy,attr"`
			} `xml:"ext"`
		} `xml:"xfrm"`
	} `xml:"spPr"`
}

package adapters

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"guild-contributions/internal/types"
)

// Strategy reads one header line of the contributions dialog. It returns the
// raw label and value it found, or ok=false when the line does not have the
// shape it understands.
type Strategy interface {
	Name() string
	Extract(line *goquery.Selection, fields types.FieldSet) (label, value string, ok bool)
}

// DefaultStrategies lists the line formats in order of preference
var DefaultStrategies = []Strategy{
	PairedSpans{},
	Concatenated{},
}

// PairedSpans handles lines rendered as <span>[Label]</span><span title="1234567">1.2M</span>.
// The title attribute carries the full-precision number and wins over the
// (possibly abbreviated) display text.
type PairedSpans struct{}

func (PairedSpans) Name() string { return "paired-spans" }

func (PairedSpans) Extract(line *goquery.Selection, fields types.FieldSet) (string, string, bool) {
	spans := line.Find("span")
	if spans.Length() == 0 {
		return "", "", false
	}

	label := types.CleanLabel(spans.First().Text())
	if label == "" {
		return "", "", false
	}

	// the label span may carry a tooltip of its own; only later spans hold the value
	values := spans.Slice(1, goquery.ToEnd)
	if titled := values.Filter("[title]").First(); titled.Length() > 0 {
		if title, _ := titled.Attr("title"); strings.TrimSpace(title) != "" {
			return label, strings.TrimSpace(title), true
		}
	}

	if values.Length() == 0 {
		return "", "", false
	}
	value := strings.TrimSpace(values.Last().Text())
	if value == "" {
		return "", "", false
	}
	return label, value, true
}

// Concatenated handles lines where label and value share one text node
// ("Mana Dust 12,345"). The line is split after the longest known label it
// starts with.
type Concatenated struct{}

func (Concatenated) Name() string { return "concatenated" }

func (Concatenated) Extract(line *goquery.Selection, fields types.FieldSet) (string, string, bool) {
	text := types.CleanLabel(line.Text())
	if text == "" {
		return "", "", false
	}

	best := ""
	for _, field := range fields {
		if len(field) <= len(best) || len(text) < len(field) {
			continue
		}
		if !strings.EqualFold(text[:len(field)], field) {
			continue
		}
		// "Wood" must not match "Woodcutting 12"
		if rest := text[len(field):]; rest != "" && unicode.IsLetter([]rune(rest)[0]) {
			continue
		}
		best = field
	}
	if best == "" {
		return "", "", false
	}

	value := strings.TrimSpace(text[len(best):])
	value = strings.TrimSpace(strings.TrimPrefix(value, ":"))
	if value == "" {
		return "", "", false
	}
	return best, value, true
}

// Field is one label/value pair read from the dialog, before normalization
type Field struct {
	Label    string
	Value    string
	Strategy string
}

// ExtractFields walks the direct children of header and returns the
// recognized fields in page order. Lines no strategy can read, or whose label
// is not a known field, are skipped.
func ExtractFields(header *goquery.Selection, fields types.FieldSet, strategies []Strategy) []Field {
	var out []Field
	header.Children().Each(func(i int, line *goquery.Selection) {
		for _, strategy := range strategies {
			raw, value, ok := strategy.Extract(line, fields)
			if !ok {
				continue
			}
			label, known := fields.Lookup(raw)
			if !known {
				continue
			}
			out = append(out, Field{Label: label, Value: value, Strategy: strategy.Name()})
			return
		}
	})
	return out
}

// ParseHTML parses HTML content into a goquery document
func ParseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ParsePanel parses the dialog markup and returns its root element. The
// panel must exist and have child elements to be usable.
func ParsePanel(html string, selectors types.Selectors) (*goquery.Selection, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("panel %s: %w", selectors.Panel, types.ErrNotFound)
	}

	doc, err := ParseHTML(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse panel: %w", err)
	}

	panel := doc.Find(selectors.Panel).First()
	if panel.Length() == 0 {
		return nil, fmt.Errorf("panel %s: %w", selectors.Panel, types.ErrStructuralInvalid)
	}
	if panel.Children().Length() == 0 {
		return nil, fmt.Errorf("panel %s has no content: %w", selectors.Panel, types.ErrStructuralInvalid)
	}
	return panel, nil
}

// FindHeader returns the summary region of the panel
func FindHeader(panel *goquery.Selection, selectors types.Selectors) (*goquery.Selection, error) {
	header := panel.Find(selectors.Header).First()
	if header.Length() == 0 {
		return nil, fmt.Errorf("header %s: %w", selectors.Header, types.ErrNotFound)
	}
	return header, nil
}

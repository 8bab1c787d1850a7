// Package article holds the article content handed to a fill run and the
// slot layout it is written into.
package article

// Content is the text of one article. It is not modified during a run; the
// auto-fit controller keeps its own working copy of Body.
type Content struct {
	Overline string `json:"overline" yaml:"overline"`
	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle" yaml:"subtitle"`
	Source   string `json:"source" yaml:"source"`
	URL      string `json:"url" yaml:"url"`
	Dateline string `json:"dateline" yaml:"dateline"`
	Body     string `json:"body" yaml:"body"`
}

// Slot is a named text region of a template with an allotted height.
type Slot interface {
	Name() string
	Height() float64
}

// Layout maps the named slots of one article frame. Columns are ordered left
// to right. Any single slot may be nil.
type Layout struct {
	Headline Slot
	Title    Slot
	Subtitle Slot
	Source   Slot
	URL      Slot
	Columns  []Slot
}

// LastColumn returns the rightmost column, or nil when there are none.
func (l Layout) LastColumn() Slot {
	if len(l.Columns) == 0 {
		return nil
	}
	return l.Columns[len(l.Columns)-1]
}

// Summary reports which slots a frame provides.
type Summary struct {
	HasHeadline bool `json:"hasHeadline"`
	HasTitle    bool `json:"hasTitle"`
	HasSubtitle bool `json:"hasSubtitle"`
	HasSource   bool `json:"hasSource"`
	HasURL      bool `json:"hasUrl"`
	ColumnCount int  `json:"columnCount"`
}

// Summary describes the layout.
func (l Layout) Summary() Summary {
	return Summary{
		HasHeadline: l.Headline != nil,
		HasTitle:    l.Title != nil,
		HasSubtitle: l.Subtitle != nil,
		HasSource:   l.Source != nil,
		HasURL:      l.URL != nil,
		ColumnCount: len(l.Columns),
	}
}

// Field pairs a heading slot with the content that belongs in it.
type Field struct {
	Slot Slot
	Text string
}

// Fields lists the non-body slots in fill order, skipping slots that are
// missing from the layout or whose content is empty.
func (l Layout) Fields(c Content) []Field {
	candidates := []Field{
		{Slot: l.Headline, Text: c.Overline},
		{Slot: l.Title, Text: c.Title},
		{Slot: l.Subtitle, Text: c.Subtitle},
		{Slot: l.Source, Text: c.Source},
		{Slot: l.URL, Text: c.URL},
	}
	out := make([]Field, 0, len(candidates))
	for _, f := range candidates {
		if f.Slot == nil || f.Text == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

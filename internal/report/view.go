package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

const stylesheet = `
body { font-family: "Pretendard", "Noto Sans KR", sans-serif; color: #1f2937; margin: 0; background: #f8fafc; }
.report { max-width: 880px; margin: 0 auto; padding: 32px 24px; background: #fff; }
h1 { font-size: 26px; margin: 0 0 8px; }
h2 { font-size: 18px; border-bottom: 2px solid #e5e7eb; padding-bottom: 6px; margin-top: 32px; }
.notice { padding: 10px 14px; border-radius: 6px; font-size: 14px; }
.notice-structured { background: #f1f5f9; border: 1px solid #cbd5e1; }
.notice-ai { background: #eef2ff; border: 1px solid #c7d2fe; }
dl { display: grid; grid-template-columns: 140px 1fr; gap: 6px 12px; }
dt { color: #6b7280; }
.overall { display: flex; gap: 24px; }
.metric { flex: 1; text-align: center; padding: 16px; border: 1px solid #e5e7eb; border-radius: 8px; }
.metric .value { display: block; font-size: 30px; font-weight: 700; color: #1d4ed8; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 8px; border-bottom: 1px solid #e5e7eb; text-align: left; font-size: 14px; }
tr.strongest td:first-child { color: #047857; font-weight: 600; }
tr.weakest td:first-child { color: #b91c1c; font-weight: 600; }
.bar { background: #e5e7eb; border-radius: 4px; height: 8px; width: 160px; display: inline-block; margin-right: 8px; }
.fill { background: #2563eb; border-radius: 4px; height: 8px; }
.swot-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
.swot-grid div { border: 1px solid #e5e7eb; border-radius: 8px; padding: 8px 16px; }
footer { margin-top: 40px; font-size: 12px; color: #6b7280; }
`

// writer keeps the first write error so components can write sequentially.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) str(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) render(ctx context.Context, c templ.Component) {
	if w.err != nil {
		return
	}
	w.err = c.Render(ctx, w.w)
}

// el renders <name attrs...>children</name>. attrs are key/value pairs.
func el(name string, attrs []string, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.str("<" + name)
		for i := 0; i+1 < len(attrs); i += 2 {
			w.str(" " + attrs[i] + `="` + templ.EscapeString(attrs[i+1]) + `"`)
		}
		w.str(">")
		for _, c := range children {
			w.render(ctx, c)
		}
		w.str("</" + name + ">")
		return w.err
	})
}

// void renders a self-closing element.
func void(name string, attrs []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.str("<" + name)
		for i := 0; i+1 < len(attrs); i += 2 {
			w.str(" " + attrs[i] + `="` + templ.EscapeString(attrs[i+1]) + `"`)
		}
		w.str("/>")
		return w.err
	})
}

func text(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

func raw(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func page(doc document) templ.Component {
	return templ.Join(
		raw("<!DOCTYPE html>\n"),
		el("html", []string{"lang", doc.Lang},
			el("head", nil,
				void("meta", []string{"charset", "utf-8"}),
				void("meta", []string{"name", "viewport", "content", "width=device-width, initial-scale=1"}),
				el("title", nil, text(doc.Title+" - "+companyName(doc))),
				el("style", nil, raw(stylesheet)),
			),
			el("body", []string{
				"data-report-kind", string(doc.Kind),
				"data-diagnosis-id", doc.DiagnosisID,
				"data-overall-score", strconv.Itoa(doc.Overall),
			},
				el("main", []string{"class", "report"},
					header(doc),
					companyBlock(doc),
					overallBlock(doc),
					categoryTable(doc),
					listBlock("summary", doc.Summary, "ul"),
					swotBlock(doc),
					listBlock("recommendations", doc.Recs, "ol"),
					listBlock("roadmap", doc.Roadmap, "ol"),
					footer(doc),
				),
			),
		),
	)
}

func companyName(doc document) string {
	if len(doc.Company) == 0 {
		return ""
	}
	return doc.Company[0][1]
}

func header(doc document) templ.Component {
	return el("header", nil,
		el("h1", nil, text(doc.Title)),
		el("p", []string{"class", "notice notice-" + string(doc.Kind)}, text(doc.Notice)),
	)
}

func companyBlock(doc document) templ.Component {
	var items []templ.Component
	for _, kv := range doc.Company {
		items = append(items, el("dt", nil, text(kv[0])), el("dd", nil, text(kv[1])))
	}
	return el("section", []string{"id", "company"},
		el("h2", nil, text(doc.Labels.CompanyInfo)),
		el("dl", nil, items...),
	)
}

func metric(label, value, class string) templ.Component {
	return el("div", []string{"class", "metric"},
		el("span", []string{"class", "label"}, text(label)),
		el("span", []string{"class", "value " + class}, text(value)),
	)
}

func overallBlock(doc document) templ.Component {
	children := []templ.Component{
		el("h2", nil, text(doc.Labels.OverallResult)),
		el("div", []string{"class", "overall"},
			metric(doc.Labels.OverallScore, strconv.Itoa(doc.Overall), "score-value"),
			metric(doc.Labels.Grade, doc.Grade, "grade-value"),
			metric(doc.Labels.Maturity, doc.Maturity, "maturity-value"),
		),
	}
	if doc.ScaleNote != "" {
		children = append(children, el("p", []string{"class", "scale"}, text(doc.ScaleNote)))
	}
	if doc.NextTier != "" {
		children = append(children, el("p", []string{"class", "next-tier"}, text(doc.NextTier)))
	}
	return el("section", []string{"id", "overall"}, children...)
}

func categoryTable(doc document) templ.Component {
	var rows []templ.Component
	for _, r := range doc.Rows {
		class := ""
		switch {
		case r.Strongest:
			class = "strongest"
		case r.Weakest:
			class = "weakest"
		}
		rows = append(rows, el("tr", []string{"class", class},
			el("td", nil, text(r.Name)),
			el("td", nil, text(r.Average)),
			el("td", nil,
				el("div", []string{"class", "bar"},
					el("div", []string{"class", "fill", "style", fmt.Sprintf("width: %d%%", r.BarWidth)}),
				),
				text(r.Score),
			),
			el("td", nil, text(r.Answered)),
		))
	}
	return el("section", []string{"id", "categories"},
		el("h2", nil, text(doc.Labels.CategoryBreakdown)),
		el("table", nil,
			el("thead", nil,
				el("tr", nil,
					el("th", nil, text(doc.Labels.Category)),
					el("th", nil, text(doc.Labels.Average)),
					el("th", nil, text(doc.Labels.Score)),
					el("th", nil, text(doc.Labels.Answered)),
				),
			),
			el("tbody", nil, rows...),
		),
	)
}

func items(s section, listTag string) templ.Component {
	var lis []templ.Component
	for _, it := range s.Items {
		lis = append(lis, el("li", nil, text(it)))
	}
	return el(listTag, nil, lis...)
}

func source(s section) string {
	if s.Structured {
		return string(KindStructured)
	}
	return string(KindAI)
}

func listBlock(id string, s section, listTag string) templ.Component {
	return el("section", []string{"id", id, "data-source", source(s)},
		el("h2", nil, text(s.Title)),
		items(s, listTag),
	)
}

func swotBlock(doc document) templ.Component {
	ids := [4]string{"strengths", "weaknesses", "opportunities", "threats"}
	var blocks []templ.Component
	for i, s := range doc.SWOT {
		blocks = append(blocks, el("div", []string{"id", ids[i], "data-source", source(s)},
			el("h3", nil, text(s.Title)),
			items(s, "ul"),
		))
	}
	return el("section", []string{"id", "swot"},
		el("h2", nil, text(doc.Labels.SWOT)),
		el("div", []string{"class", "swot-grid"}, blocks...),
	)
}

func footer(doc document) templ.Component {
	return el("footer", nil,
		el("p", nil, text(doc.Labels.DiagnosisID+": "+doc.DiagnosisID)),
		el("p", nil, text(doc.Labels.GeneratedAt+": "+doc.GeneratedAt)),
		el("p", nil, text(doc.Footer)),
	)
}

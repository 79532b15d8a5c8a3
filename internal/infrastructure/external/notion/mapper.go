package notion

import (
	"strings"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
)

// toFilter converts a domain filter into the Notion filter body.
func toFilter(f grade.Filter) *FilterDTO {
	dto := &FilterDTO{Property: f.Property}
	switch f.Match {
	case grade.MatchNumber:
		dto.Number = &NumberConditionDTO{Equals: f.Number}
	default:
		dto.RichText = &TextConditionDTO{Equals: f.Text}
	}
	return dto
}

// toRecord converts a page into a domain record.
func toRecord(page PageDTO) *grade.Record {
	rec := &grade.Record{
		ID:         page.ID,
		Properties: make(map[string]grade.Value, len(page.Properties)),
	}
	for name, prop := range page.Properties {
		rec.Properties[name] = toValue(prop)
	}
	return rec
}

func toValue(p PropertyDTO) grade.Value {
	switch p.Type {
	case "number":
		return grade.Value{Type: grade.PropertyNumber, Number: p.Number}
	case "formula":
		v := grade.Value{Type: grade.PropertyFormula}
		if p.Formula != nil {
			v.Number = p.Formula.Number
			if p.Formula.String != nil {
				v.Text = *p.Formula.String
			}
		}
		return v
	case "rich_text":
		return grade.Value{Type: grade.PropertyRichText, Text: plainText(p.RichText)}
	case "title":
		return grade.Value{Type: grade.PropertyTitle, Text: plainText(p.Title)}
	case "email":
		v := grade.Value{Type: grade.PropertyEmail}
		if p.Email != nil {
			v.Text = *p.Email
		}
		return v
	default:
		return grade.Value{Type: grade.PropertyOther}
	}
}

func plainText(runs []RichTextDTO) string {
	if len(runs) == 1 {
		return runs[0].PlainText
	}
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.PlainText)
	}
	return b.String()
}

package htmlform

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const submitOverrideSelector = `button[formaction], input[type="submit"][formaction], input[type="image"][formaction]`

// ParseDocument parses an HTML body.
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseForms extracts every form of an HTML body in document order.
func ParseForms(body []byte) ([]InputVector, error) {
	doc, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}
	return FormsFromDocument(doc), nil
}

// FormsFromDocument extracts every form of a parsed document.
func FormsFromDocument(doc *goquery.Document) []InputVector {
	var forms []InputVector
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		forms = append(forms, vectorFromForm(form))
	})
	return forms
}

func vectorFromForm(form *goquery.Selection) InputVector {
	action, _ := form.Attr("action")
	// A submit control with its own formaction sends the form there.
	if override, ok := form.Find(submitOverrideSelector).First().Attr("formaction"); ok {
		action = override
	}

	method, _ := form.Attr("method")
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	v := InputVector{Action: strings.TrimSpace(action), Method: method}
	form.Find("input, select, textarea, button").Each(func(_ int, control *goquery.Selection) {
		name, ok := control.Attr("name")
		if !ok || name == "" {
			return
		}
		v.Fields = append(v.Fields, Field{
			Name:  name,
			Type:  controlType(control),
			Value: controlValue(control),
		})
	})
	return v
}

func controlType(control *goquery.Selection) string {
	tag := goquery.NodeName(control)
	switch tag {
	case "select", "textarea":
		return tag
	}
	typ, _ := control.Attr("type")
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ != "" {
		return typ
	}
	if tag == "button" {
		return "submit"
	}
	return "text"
}

func controlValue(control *goquery.Selection) string {
	switch goquery.NodeName(control) {
	case "textarea":
		return control.Text()
	case "select":
		option := control.Find("option[selected]").First()
		if option.Length() == 0 {
			option = control.Find("option").First()
		}
		if value, ok := option.Attr("value"); ok {
			return value
		}
		return strings.TrimSpace(option.Text())
	}
	value, _ := control.Attr("value")
	return value
}

package application

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tplRestaurantPlaced = "restaurant_placed.html"
	tplUserPlaced       = "user_placed.html"
	tplUserAccepted     = "user_accepted.html"
	tplUserRejected     = "user_rejected.html"
	tplUserPayment      = "user_payment.html"
	tplUserCancelled    = "user_cancelled.html"
)

type lineItem struct {
	Name  string
	Price string
}

type mailData struct {
	OrderID        int64
	UserID         int64
	UserName       string
	RestaurantName string
	Items          []lineItem
	Total          string
	AcceptLink     string
	RejectLink     string
	PaymentLink    string
}

// Templates holds one parsed tree per mail, each joined with the shared layout.
type Templates struct {
	byName map[string]*template.Template
}

func ParseTemplates() (*Templates, error) {
	names := []string{tplRestaurantPlaced, tplUserPlaced, tplUserAccepted, tplUserRejected, tplUserPayment, tplUserCancelled}
	t := &Templates{byName: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		tpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		t.byName[name] = tpl
	}
	return t, nil
}

func (t *Templates) Render(name string, data mailData) (string, error) {
	tpl, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s", name)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

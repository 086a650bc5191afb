package alert

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/repository"
)

var digestTmpl = template.Must(template.New("digest").Parse(`<p>Hi {{.Name}},</p>
<p>These items in your pantry need attention:</p>
<ul>
{{- range .Lines}}
  <li><strong>{{.Name}}</strong> &middot; {{.When}}</li>
{{- end}}
</ul>
<p>Use them up, donate or sell them before they go to waste.</p>
<p><a href="{{.PantryURL}}">Open your pantry</a></p>
`))

type digestLine struct {
	Name string
	When string
}

// Digest is one rendered email.
type Digest struct {
	To      string
	Subject string
	Body    string
}

// BuildDigest renders the email for r as of today.
func BuildDigest(r repository.AlertRecipient, today model.Date, baseURL string) (*Digest, error) {
	name := r.FullName
	if name == "" {
		name = (&model.User{Email: r.Email}).DisplayName()
	}

	lines := make([]digestLine, 0, len(r.Items))
	expired := 0
	for _, it := range r.Items {
		if it.ExpiryDate.Before(today) {
			expired++
		}
		lines = append(lines, digestLine{Name: it.Name, When: describe(it.ExpiryDate, today)})
	}

	var buf bytes.Buffer
	err := digestTmpl.Execute(&buf, map[string]any{
		"Name":      name,
		"Lines":     lines,
		"PantryURL": baseURL + "/pantry",
	})
	if err != nil {
		return nil, fmt.Errorf("rendering digest: %w", err)
	}

	return &Digest{To: r.Email, Subject: subject(len(r.Items), expired), Body: buf.String()}, nil
}

func subject(total, expired int) string {
	noun := "items"
	if total == 1 {
		noun = "item"
	}
	if expired > 0 {
		return fmt.Sprintf("%d pantry %s expiring or expired (%d expired)", total, noun, expired)
	}
	return fmt.Sprintf("%d pantry %s expiring soon", total, noun)
}

func describe(expiry, today model.Date) string {
	switch days := expiry.DaysSince(today); {
	case days < -1:
		return fmt.Sprintf("expired %d days ago", -days)
	case days == -1:
		return "expired yesterday"
	case days == 0:
		return "expires today"
	case days == 1:
		return "expires tomorrow"
	default:
		return fmt.Sprintf("expires in %d days", days)
	}
}

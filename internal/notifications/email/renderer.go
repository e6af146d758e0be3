package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"carwash/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// templateData is the struct passed into the reminder templates.
type templateData struct {
	Subject      string
	BookingID    string
	Username     string
	ServiceName  string
	LicensePlate string
	When         string
	DetailURL    string
	CancelURL    string
	SupportEmail string
}

// Renderer renders the reminder email from the embedded templates.
type Renderer struct {
	html         *template.Template
	text         *texttemplate.Template
	siteURL      string
	supportEmail string
	loc          *time.Location
}

// RendererConfig holds the parameters needed to construct a Renderer.
type RendererConfig struct {
	// SiteURL is the public base URL used for the detail and cancel links.
	SiteURL      string
	SupportEmail string
	// Location is used to display the appointment time. Defaults to UTC.
	Location *time.Location
}

// NewRenderer parses the embedded templates and returns a Renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	htmlTmpl, err := template.ParseFS(templateFS, "templates/reminder.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse reminder.html: %w", err)
	}
	txtTmpl, err := texttemplate.ParseFS(templateFS, "templates/reminder.txt")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse reminder.txt: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	siteURL := strings.TrimRight(cfg.SiteURL, "/")
	if siteURL == "" {
		siteURL = "http://127.0.0.1:8000"
	}

	return &Renderer{
		html:         htmlTmpl,
		text:         txtTmpl,
		siteURL:      siteURL,
		supportEmail: cfg.SupportEmail,
		loc:          loc,
	}, nil
}

// Subject returns the reminder subject line for c.
func Subject(c *types.BookingContact) string {
	if c.ServiceName == "" {
		return fmt.Sprintf("Reminder: booking #%s", c.BookingID)
	}
	return fmt.Sprintf("Reminder: booking #%s - %s", c.BookingID, c.ServiceName)
}

// Render produces the subject and both bodies for a booking reminder.
func (r *Renderer) Render(c *types.BookingContact) (*RenderedEmail, error) {
	if c == nil {
		return nil, fmt.Errorf("renderer: contact is nil")
	}
	data := r.buildTemplateData(c)

	var htmlBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render HTML for booking %s: %w", c.BookingID, err)
	}
	var txtBuf bytes.Buffer
	if err := r.text.Execute(&txtBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render text for booking %s: %w", c.BookingID, err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}

func (r *Renderer) buildTemplateData(c *types.BookingContact) templateData {
	name := c.Username
	if name == "" {
		name = "there"
	}
	when := "to be confirmed"
	if c.ScheduledAt != nil {
		when = c.ScheduledAt.In(r.loc).Format("Mon, Jan 2 at 15:04")
	}
	return templateData{
		Subject:      Subject(c),
		BookingID:    c.BookingID,
		Username:     name,
		ServiceName:  c.ServiceName,
		LicensePlate: c.LicensePlate,
		When:         when,
		DetailURL:    fmt.Sprintf("%s/bookings/%s/", r.siteURL, c.BookingID),
		CancelURL:    fmt.Sprintf("%s/bookings/%s/cancel/", r.siteURL, c.BookingID),
		SupportEmail: r.supportEmail,
	}
}

package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/yuin/goldmark"

	"gospeldiary/internal/core"
)

// EmailTemplate represents an HTML email template configuration
type EmailTemplate struct {
	Name            string
	Subject         string
	Title           string
	HeaderColor     string
	BackgroundColor string
	TextColor       string
	LinkColor       string
	AccentColor     string
	MaxWidth        string
	FontFamily      string
	SourceLabel     string
}

// Message is a rendered email ready to be sent.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// GetDefaultEmailTemplate returns the daily diary template
func GetDefaultEmailTemplate() *EmailTemplate {
	return &EmailTemplate{
		Name:            "default",
		Subject:         "Daily Bible Diary - {{.Date}}",
		Title:           "Daily Bible Diary",
		HeaderColor:     "#f4f4f4",
		BackgroundColor: "#ffffff",
		TextColor:       "#222222",
		LinkColor:       "#2563eb",
		AccentColor:     "#4caf50",
		MaxWidth:        "640px",
		FontFamily:      "Arial, sans-serif",
		SourceLabel:     "USCCB Daily Readings",
	}
}

// getEmailCSS returns the inline stylesheet for the email template
func getEmailCSS(tmpl *EmailTemplate) string {
	return fmt.Sprintf(`
<style type="text/css">
  body { margin: 0; padding: 0; background-color: %s; font-family: %s; color: %s; line-height: 1.55; }
  .container { max-width: %s; margin: 0 auto; }
  .header { background: %s; padding: 20px; text-align: center; }
  .header h1 { margin: 0; font-size: 24px; }
  .header .date { margin: 8px 0 0 0; font-size: 16px; }
  .content { padding: 20px; }
  .gospel { background: #f9f9f9; padding: 18px 20px; border-left: 4px solid %s; }
  .gospel h3 { margin-top: 0; }
  .translation { background: #f1f5f9; padding: 14px 20px; margin-top: 16px; font-style: italic; }
  .diary-entry { background: #fff8e1; padding: 18px 20px; border-radius: 6px; margin-top: 20px; }
  .source { margin-top: 10px; font-size: 12px; }
  .footer { text-align: center; font-size: 12px; color: #666666; margin-top: 30px; padding: 12px; }
  p { margin: 0 0 12px; }
  a { color: %s; }
</style>`,
		tmpl.BackgroundColor, tmpl.FontFamily, tmpl.TextColor, tmpl.MaxWidth,
		tmpl.HeaderColor, tmpl.AccentColor, tmpl.LinkColor)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Subject}}</title>
    {{.CSS}}
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Template.Title}}</h1>
            <p class="date">{{.LongDate}}</p>
        </div>
        <div class="content">
            <div class="gospel">
                <h3>Gospel of the Day</h3>
                <h4>{{if .Delivery.SourceLink}}<a href="{{.Delivery.SourceLink}}" target="_blank">{{.Delivery.Citation}}</a>{{else}}{{.Delivery.Citation}}{{end}}</h4>
                {{range .Paragraphs}}<p>{{.}}</p>
                {{end}}
                {{if .Delivery.PageURL}}<p class="source">Source: <a href="{{.Delivery.PageURL}}" target="_blank">{{.Template.SourceLabel}}</a></p>{{end}}
            </div>
            {{if .Delivery.Translation}}
            <div class="translation">
                <h4>Bản dịch tiếng Việt</h4>
                <p>{{.Delivery.Translation}}</p>
            </div>
            {{end}}
            <div class="diary-entry">
                <h3>Personal Reflection</h3>
                {{.Reflection}}
            </div>
        </div>
        <div class="footer">{{.Template.Title}} - Generated with AI assistance{{if .Delivery.Model}} ({{.Delivery.Model}}){{end}}</div>
    </div>
</body>
</html>`

var parsedHTMLTemplate = template.Must(template.New("email").Parse(htmlTemplate))

// MarkdownToHTML converts the generated reflection to HTML.
func MarkdownToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderHTMLEmail renders the HTML body for a delivery
func RenderHTMLEmail(d core.Delivery, emailTemplate *EmailTemplate) (string, error) {
	if emailTemplate == nil {
		emailTemplate = GetDefaultEmailTemplate()
	}

	reflection, err := MarkdownToHTML(d.GeneratedText)
	if err != nil {
		return "", err
	}

	subject, err := GenerateSubject(emailTemplate, d)
	if err != nil {
		return "", err
	}

	templateData := struct {
		Delivery   core.Delivery
		Template   *EmailTemplate
		Subject    string
		LongDate   string
		Paragraphs []string
		// goldmark escapes raw HTML by default, so its output is trusted.
		Reflection template.HTML
		CSS        template.HTML
	}{
		Delivery:   d,
		Template:   emailTemplate,
		Subject:    subject,
		LongDate:   d.Date.Format("Monday, January 2, 2006"),
		Paragraphs: d.Paragraphs(),
		Reflection: template.HTML(reflection),
		CSS:        template.HTML(getEmailCSS(emailTemplate)),
	}

	var buf bytes.Buffer
	if err := parsedHTMLTemplate.Execute(&buf, templateData); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}

	return buf.String(), nil
}

// RenderText renders the plain-text alternative body.
func RenderText(d core.Delivery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Gospel of the Day - %s\n\n", d.Date.Format("Monday, January 2, 2006"))
	b.WriteString(d.Citation)
	if d.SourceLink != "" {
		fmt.Fprintf(&b, " (%s)", d.SourceLink)
	}
	b.WriteString("\n\n")
	b.WriteString(d.Body)
	b.WriteString("\n\n")
	if d.Translation != "" {
		b.WriteString("Bản dịch tiếng Việt:\n")
		b.WriteString(d.Translation)
		b.WriteString("\n\n")
	}
	b.WriteString("Personal Reflection\n\n")
	b.WriteString(strings.TrimSpace(d.GeneratedText))
	b.WriteString("\n")
	if d.PageURL != "" {
		fmt.Fprintf(&b, "\nSource: %s\n", d.PageURL)
	}
	return b.String()
}

// GenerateSubject generates email subject using template
func GenerateSubject(emailTemplate *EmailTemplate, d core.Delivery) (string, error) {
	tmpl, err := texttemplate.New("subject").Parse(emailTemplate.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to parse subject template: %w", err)
	}

	data := struct {
		Date     string
		Citation string
	}{
		Date:     d.Date.Format("January 2, 2006"),
		Citation: d.Citation,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute subject template: %w", err)
	}

	return buf.String(), nil
}

// Render builds the complete message for a delivery.
func Render(d core.Delivery, emailTemplate *EmailTemplate) (Message, error) {
	if emailTemplate == nil {
		emailTemplate = GetDefaultEmailTemplate()
	}

	subject, err := GenerateSubject(emailTemplate, d)
	if err != nil {
		return Message{}, err
	}
	html, err := RenderHTMLEmail(d, emailTemplate)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Subject: subject,
		HTML:    html,
		Text:    RenderText(d),
	}, nil
}

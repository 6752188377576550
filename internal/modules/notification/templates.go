package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"kutable/internal/domain"
)

const (
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCancelled = "booking_cancelled"
	TemplateClaimInvite      = "claim_invite"
	TemplateCustom           = "custom"
)

type messageTemplate struct {
	sms     *template.Template
	subject *template.Template
	html    *htmltemplate.Template
}

// Rendered is the provider-ready form of a notification.
type Rendered struct {
	Subject string
	Body    string
}

var htmlFuncs = htmltemplate.FuncMap{
	// raw is only reachable from the custom template, which internal callers fill.
	"raw": func(s string) htmltemplate.HTML { return htmltemplate.HTML(s) },
}

func mustTemplate(name, sms, subject, html string) messageTemplate {
	return messageTemplate{
		sms:     template.Must(template.New(name + ".sms").Option("missingkey=error").Parse(sms)),
		subject: template.Must(template.New(name + ".subject").Option("missingkey=error").Parse(subject)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Funcs(htmlFuncs).Option("missingkey=error").Parse(html)),
	}
}

var templates = map[string]messageTemplate{
	TemplateBookingConfirmed: mustTemplate(TemplateBookingConfirmed,
		`Hi {{.clientName}}, your Kutable booking on {{.date}} at {{.time}} is confirmed. Paid: ${{.amount}}.`,
		`Your booking on {{.date}} is confirmed`,
		`<p>Hi {{.clientName}},</p>
<p>Your booking on <strong>{{.date}}</strong> at <strong>{{.time}}</strong> is confirmed.</p>
<p>Amount paid: ${{.amount}}</p>
<p>Reference: {{.bookingId}}</p>`,
	),
	TemplateBookingCancelled: mustTemplate(TemplateBookingCancelled,
		`Hi {{.clientName}}, your Kutable booking on {{.date}} at {{.time}} was cancelled.`,
		`Your booking on {{.date}} was cancelled`,
		`<p>Hi {{.clientName}},</p>
<p>Your booking on <strong>{{.date}}</strong> at <strong>{{.time}}</strong> was cancelled.</p>
<p>Reference: {{.bookingId}}</p>`,
	),
	TemplateClaimInvite: mustTemplate(TemplateClaimInvite,
		`{{.businessName}} is listed on Kutable. Claim your free profile: {{.claimUrl}}`,
		`Claim {{.businessName}} on Kutable`,
		`<p>Hi{{if .ownerName}} {{.ownerName}}{{end}},</p>
<p><strong>{{.businessName}}</strong> is listed on Kutable. Claim the profile to take bookings and get paid online.</p>
<p><a href="{{.claimUrl}}">Claim your profile</a></p>
<p>The link expires {{.expiresAt}}.</p>`,
	),
	TemplateCustom: mustTemplate(TemplateCustom,
		`{{.message}}`,
		`{{.subject}}`,
		`{{raw .message}}`,
	),
}

// Render fills the named template for one channel. SMS uses only the body.
func Render(name string, channel domain.NotificationChannel, payload map[string]any) (Rendered, error) {
	t, ok := templates[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	var out Rendered
	switch channel {
	case domain.ChannelSMS:
		var buf bytes.Buffer
		if err := t.sms.Execute(&buf, payload); err != nil {
			return Rendered{}, fmt.Errorf("%w: %v", ErrRender, err)
		}
		out.Body = buf.String()
	case domain.ChannelEmail:
		var subject, body bytes.Buffer
		if err := t.subject.Execute(&subject, payload); err != nil {
			return Rendered{}, fmt.Errorf("%w: %v", ErrRender, err)
		}
		if err := t.html.Execute(&body, payload); err != nil {
			return Rendered{}, fmt.Errorf("%w: %v", ErrRender, err)
		}
		out.Subject = subject.String()
		out.Body = body.String()
	default:
		return Rendered{}, fmt.Errorf("%w: %s", ErrInvalidChannel, channel)
	}
	return out, nil
}

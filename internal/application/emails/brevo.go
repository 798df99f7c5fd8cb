package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches the Brevo API v3 transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoContact   `json:"sender"`
	To          []BrevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	ReplyTo     *BrevoContact  `json:"replyTo,omitempty"`
}

type BrevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Sender sends the transactional emails of the portal. A nil Sender is a no-op at call sites.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, displayName, companyName string) error
	SendInvite(ctx context.Context, toEmail, inviteLink, companyName string, reminder bool) error
	SendPasswordReset(ctx context.Context, toEmail, resetLink string) error
}

// BrevoClient sends emails through the Brevo API. Without an API key every
// send is skipped, which is what local development and tests rely on.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	AppURL   string
	Endpoint string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@objektbetreuer-portal.de"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

func (c *BrevoClient) send(ctx context.Context, toEmail, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoContact{Email: c.from(), Name: "Objektbetreuer Portal"},
		To:          []BrevoContact{{Email: toEmail}},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &BrevoContact{Email: "support@objektbetreuer-portal.de", Name: "Objektbetreuer Support"},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendWelcome is sent after a company account is registered.
func (c *BrevoClient) SendWelcome(ctx context.Context, toEmail, displayName, companyName string) error {
	if displayName == "" {
		displayName = "und herzlich willkommen"
	}
	return c.send(ctx, toEmail, "Willkommen im Objektbetreuer Portal", Layout(welcomeContent(displayName, companyName, c.AppURL)))
}

// SendInvite sends the employee invitation; reminder marks a resend.
func (c *BrevoClient) SendInvite(ctx context.Context, toEmail, inviteLink, companyName string, reminder bool) error {
	subject := fmt.Sprintf("Einladung von %s zum Objektbetreuer Portal", companyName)
	if reminder {
		subject = "Erinnerung: " + subject
	}
	return c.send(ctx, toEmail, subject, Layout(invitationContent(inviteLink, companyName)))
}

func (c *BrevoClient) SendPasswordReset(ctx context.Context, toEmail, resetLink string) error {
	return c.send(ctx, toEmail, "Passwort zurücksetzen", Layout(passwordResetContent(resetLink)))
}

func welcomeContent(displayName, companyName, appURL string) string {
	return fmt.Sprintf(`
    <h1>Hallo %s!</h1>
    <p>Ihr Unternehmenskonto für <strong>%s</strong> wurde erfolgreich angelegt.</p>
    <p>Legen Sie jetzt Ihre ersten Objekte an, planen Sie Aufträge und laden Sie Ihre Mitarbeiter ein.</p>
    <center>
      <a href="%s" class="portal-button">Zum Portal</a>
    </center>
    <p style="margin-top: 20px; font-size: 14px; color: #666;">
      Falls Sie dieses Konto nicht angelegt haben, wenden Sie sich bitte umgehend an unseren Support.
    </p>
    <p>Ihr Objektbetreuer-Team</p>
`, EscapeHTML(displayName), EscapeHTML(companyName), appURL)
}

func invitationContent(inviteLink, companyName string) string {
	return fmt.Sprintf(`
    <h1>Einladung von %s</h1>
    <p><strong>%s</strong> hat Sie eingeladen, als Mitarbeiter im Objektbetreuer Portal mitzuarbeiten.</p>
    <p>Klicken Sie auf den folgenden Button, um die Einladung anzunehmen und Ihr Passwort festzulegen:</p>
    <center>
      <a href="%s" class="portal-button">Einladung annehmen</a>
    </center>
    <p style="margin-top:20px;font-size:14px;color:#666;">
      Die Einladung ist 7 Tage gültig. Wenn Sie keine Einladung erwartet haben, können Sie diese E-Mail ignorieren.
    </p>
    <p>Ihr Objektbetreuer-Team</p>
`, EscapeHTML(companyName), EscapeHTML(companyName), inviteLink)
}

func passwordResetContent(resetLink string) string {
	return fmt.Sprintf(`
    <h1>Passwort zurücksetzen</h1>
    <p>Sie haben angefordert, Ihr Passwort zurückzusetzen. Der Link ist eine Stunde gültig.</p>
    <center>
      <a href="%s" class="portal-button">Neues Passwort festlegen</a>
    </center>
    <p><strong>Sicherheitshinweis:</strong><br>
    Wenn Sie das nicht waren, ignorieren Sie diese E-Mail. Ihr Passwort bleibt unverändert.</p>
    <p>Ihr Objektbetreuer-Team</p>
`, resetLink)
}

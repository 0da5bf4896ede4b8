package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/klubhub/klubhub/pkg/asyncx"
	"github.com/klubhub/klubhub/pkg/config"
	"github.com/klubhub/klubhub/pkg/jobx"
	"github.com/klubhub/klubhub/pkg/kernel"
	"github.com/klubhub/klubhub/pkg/logx"
	"github.com/klubhub/klubhub/pkg/notifx"
)

// MailJobType is the job type the mail worker handles. The payload is a
// fully rendered notifx.EmailMessage; rendering happens at enqueue time.
const MailJobType = "mail.send"

// MailQueue is the queue mail jobs land on.
const MailQueue = "mail"

// NewMailJobHandler returns the worker-side handler that delivers queued
// messages through the provider.
func NewMailJobHandler(client *notifx.Client) jobx.HandlerFunc {
	return func(ctx context.Context, job *jobx.JobInfo) error {
		var msg notifx.EmailMessage
		if err := json.Unmarshal(job.Payload, &msg); err != nil {
			return fmt.Errorf("mail job %s: bad payload: %w", job.ID, err)
		}
		return client.SendEmail(ctx, msg)
	}
}

// Mailer builds and dispatches the transactional emails of the auth flows.
// Most sends are fire-and-forget: through the job queue when Redis is up,
// otherwise async in-process. Callers that need delivery errors use the
// sync variants.
type Mailer struct {
	client *notifx.Client
	jobs   *jobx.Client
	email  config.EmailConfig
	tenant config.TenantConfig
	isDev  bool
}

// NewMailer creates the mailer. jobs may be nil; dispatch then falls back to
// in-process async sends.
func NewMailer(client *notifx.Client, jobs *jobx.Client, email config.EmailConfig, tenant config.TenantConfig, isDev bool) *Mailer {
	return &Mailer{client: client, jobs: jobs, email: email, tenant: tenant, isDev: isDev}
}

// LinkTo builds a tenant-scoped frontend link. Production resolves to the
// tenant's subdomain; development uses the local hash router.
func (m *Mailer) LinkTo(tenantID kernel.TenantID, path string) string {
	if m.isDev {
		return fmt.Sprintf("http://localhost:%s/#/%s%s", m.tenant.DevPort, tenantID.String(), path)
	}
	return fmt.Sprintf("https://%s.%s%s", tenantID.String(), m.tenant.BaseDomain, path)
}

func (m *Mailer) from() string {
	if m.email.FromName != "" {
		return fmt.Sprintf("%s <%s>", m.email.FromName, m.email.FromAddress)
	}
	return m.email.FromAddress
}

// sendSync renders and delivers immediately, returning any transport error.
func (m *Mailer) sendSync(ctx context.Context, templateName string, data any, to []string, subject string) error {
	if m.client == nil {
		logx.Warnf("mailer: email transport not configured, dropping %q to %v", subject, to)
		return nil
	}
	body, err := m.client.Render(templateName, data)
	if err != nil {
		return err
	}
	msg := notifx.EmailMessage{
		From:     m.from(),
		To:       to,
		Subject:  subject,
		HTMLBody: body,
	}
	if err := m.client.SendEmail(ctx, msg); err != nil {
		return ErrEmailDispatchFailed(err)
	}
	return nil
}

// dispatch renders the message and hands it off without blocking the request.
// Failures are logged, never surfaced.
func (m *Mailer) dispatch(ctx context.Context, templateName string, data any, to []string, subject string) {
	if m.client == nil {
		logx.Warnf("mailer: email transport not configured, dropping %q to %v", subject, to)
		return
	}
	body, err := m.client.Render(templateName, data)
	if err != nil {
		logx.WithError(err).Errorf("mailer: failed to render %q", templateName)
		return
	}
	msg := notifx.EmailMessage{
		From:     m.from(),
		To:       to,
		Subject:  subject,
		HTMLBody: body,
	}

	if m.jobs != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			logx.WithError(err).Error("mailer: failed to marshal mail job payload")
			return
		}
		if _, err := m.jobs.Enqueue(ctx, jobx.Job{Type: MailJobType, Queue: MailQueue, Payload: payload}); err == nil {
			return
		}
		logx.Warn("mailer: enqueue failed, sending in-process")
	}

	asyncx.Do(func() {
		if err := m.client.SendEmail(context.Background(), msg); err != nil {
			logx.WithError(err).Errorf("mailer: failed to send %q to %v", subject, to)
		}
	})
}

type frameData struct {
	ShowQuestions bool
	ShowAutomatic bool
}

type linkData struct {
	frameData
	Link string
}

// SendVerificationEmail dispatches the verify-email link. Best-effort.
func (m *Mailer) SendVerificationEmail(ctx context.Context, tenantID kernel.TenantID, email, token string) {
	data := linkData{
		frameData: frameData{ShowQuestions: true, ShowAutomatic: true},
		Link:      m.LinkTo(tenantID, "/verify-email?token="+token),
	}
	m.dispatch(ctx, TemplateVerifyEmail, data, []string{email}, "Bekræft din email")
}

// SendSignupNotification tells the operator a new club signed up.
func (m *Mailer) SendSignupNotification(ctx context.Context, clubName, email, subdomain string) {
	if m.email.NotifyAddress == "" {
		return
	}
	data := struct {
		frameData
		BodyHTML template.HTML
	}{
		frameData: frameData{ShowAutomatic: true},
		BodyHTML: template.HTML(template.HTMLEscapeString(fmt.Sprintf(
			"Ny klub oprettet: %s (%s) af %s", clubName, subdomain, email))),
	}
	m.dispatch(ctx, TemplateOutreach, data, []string{m.email.NotifyAddress}, "Ny klub: "+clubName)
}

// SendPasswordResetEmail dispatches the password reset link. Best-effort to
// stay enumeration-resistant.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, tenantID kernel.TenantID, email, token string) {
	data := linkData{
		frameData: frameData{ShowQuestions: true, ShowAutomatic: true},
		Link:      m.LinkTo(tenantID, "/reset-password?token="+token),
	}
	m.dispatch(ctx, TemplatePasswordReset, data, []string{email}, "Nulstil din adgangskode")
}

// SendTwoFactorEnabledEmail notifies the account owner that 2FA went on.
func (m *Mailer) SendTwoFactorEnabledEmail(ctx context.Context, email string) {
	data := frameData{ShowQuestions: true, ShowAutomatic: true}
	m.dispatch(ctx, TemplateTwoFactorEnabled, data, []string{email}, "Totrinsbekræftelse aktiveret")
}

// SendCoachWelcomeEmail sends the coach their username and PIN, the PIN
// rendered digit by digit.
func (m *Mailer) SendCoachWelcomeEmail(ctx context.Context, tenantID kernel.TenantID, clubName, email, username, pin string) {
	digits := make([]string, 0, len(pin))
	for _, r := range pin {
		digits = append(digits, string(r))
	}
	data := struct {
		frameData
		ClubName  string
		Username  string
		PINDigits []string
		Link      string
	}{
		frameData: frameData{ShowQuestions: true, ShowAutomatic: true},
		ClubName:  clubName,
		Username:  username,
		PINDigits: digits,
		Link:      m.LinkTo(tenantID, "/login"),
	}
	m.dispatch(ctx, TemplateCoachWelcome, data, []string{email}, "Velkommen til "+clubName)
}

type pinResetData struct {
	frameData
	Username string
	Link     string
}

// SendPINResetEmail dispatches the PIN reset link. Best-effort.
func (m *Mailer) SendPINResetEmail(ctx context.Context, tenantID kernel.TenantID, email, username, token string) {
	data := pinResetData{
		frameData: frameData{ShowQuestions: true, ShowAutomatic: true},
		Username:  username,
		Link:      m.LinkTo(tenantID, "/reset-pin?token="+token),
	}
	m.dispatch(ctx, TemplatePINReset, data, []string{email}, "Nulstil din PIN-kode")
}

// SendPINResetEmailSync is the admin-panel variant. Delivery failure surfaces
// to the caller so operators notice transport breakage.
func (m *Mailer) SendPINResetEmailSync(ctx context.Context, tenantID kernel.TenantID, email, username, token string) error {
	data := pinResetData{
		frameData: frameData{ShowQuestions: true, ShowAutomatic: true},
		Username:  username,
		Link:      m.LinkTo(tenantID, "/reset-pin?token="+token),
	}
	return m.sendSync(ctx, TemplatePINReset, data, []string{email}, "Nulstil din PIN-kode")
}

// SendOutreachEmail sends a free-form message in the standard frame. The
// body is treated as trusted HTML; only super admins can reach this path.
func (m *Mailer) SendOutreachEmail(ctx context.Context, to, subject, bodyHTML string) error {
	data := struct {
		frameData
		BodyHTML template.HTML
	}{
		frameData: frameData{ShowQuestions: true},
		BodyHTML:  template.HTML(bodyHTML),
	}
	return m.sendSync(ctx, TemplateOutreach, data, []string{to}, subject)
}

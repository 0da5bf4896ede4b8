package auth

import "github.com/klubhub/klubhub/pkg/notifx"

// Template names registered on the notifx client.
const (
	TemplateVerifyEmail      = "auth.verify-email"
	TemplatePasswordReset    = "auth.password-reset"
	TemplateTwoFactorEnabled = "auth.2fa-enabled"
	TemplateCoachWelcome     = "auth.coach-welcome"
	TemplatePINReset         = "auth.pin-reset"
	TemplateOutreach         = "auth.outreach"
)

// logoBase64 is the inline header logo; email clients block remote images by
// default, so everything ships in the body.
const logoBase64 = "iVBORw0KGgoAAAANSUhEUgAAADIAAAAUCAYAAADPym6aAAAAcElEQVRYhe3WMQqAMAyF4b/iIbyBd/Ee3sk7eQ5HJxcnwUGoQ6FDhSZDIW/JkCEfCQkxzjnXAXgDN216IwFGYAWO1gjJBuzA1BrxlQzM1ogvJdMakRsmI8ZGEGNvxNgIYuyNGBtBjL0RYyOIsTdibORhHs4nKZET/ZIAAAAASUVORK5CYII="

const frameTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin:0;padding:0;background-color:#f4f5f7;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f5f7;padding:24px 0;">
<tr><td align="center">
<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;overflow:hidden;">
<tr><td style="background-color:#1a7f5a;padding:20px 32px;">
  <img src="data:image/png;base64,` + logoBase64 + `" alt="KlubHub" height="20" style="display:block;">
</td></tr>
<tr><td style="padding:32px;color:#222222;font-size:15px;line-height:1.6;">
{{block "body" .}}{{end}}
</td></tr>
<tr><td style="padding:20px 32px;border-top:1px solid #e8e8e8;color:#888888;font-size:12px;line-height:1.5;">
{{if .ShowQuestions}}<p style="margin:0 0 8px 0;">Spørgsmål? Skriv til os på <a href="mailto:support@klubhub.dk" style="color:#1a7f5a;">support@klubhub.dk</a>.</p>{{end}}
{{if .ShowAutomatic}}<p style="margin:0;">Denne email er sendt automatisk og kan ikke besvares.</p>{{end}}
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

const verifyEmailTemplate = `{{define "body"}}
<h2 style="margin:0 0 16px 0;font-size:20px;">Bekræft din email</h2>
<p>Velkommen til KlubHub! Klik på knappen herunder for at bekræfte din emailadresse. Linket er gyldigt i 24 timer.</p>
<p style="text-align:center;margin:28px 0;">
  <a href="{{.Link}}" style="background-color:#1a7f5a;color:#ffffff;padding:12px 28px;border-radius:6px;text-decoration:none;font-weight:bold;">Bekræft email</a>
</p>
<p style="color:#888888;font-size:13px;">Hvis knappen ikke virker, kan du kopiere dette link: <br>{{.Link}}</p>
{{end}}` + frameTemplate

const passwordResetTemplate = `{{define "body"}}
<h2 style="margin:0 0 16px 0;font-size:20px;">Nulstil din adgangskode</h2>
<p>Vi har modtaget en anmodning om at nulstille adgangskoden for din konto. Linket er gyldigt i 1 time.</p>
<p style="text-align:center;margin:28px 0;">
  <a href="{{.Link}}" style="background-color:#1a7f5a;color:#ffffff;padding:12px 28px;border-radius:6px;text-decoration:none;font-weight:bold;">Nulstil adgangskode</a>
</p>
<p style="color:#888888;font-size:13px;">Har du ikke bedt om dette, kan du se bort fra denne email.</p>
{{end}}` + frameTemplate

const twoFactorEnabledTemplate = `{{define "body"}}
<h2 style="margin:0 0 16px 0;font-size:20px;">Totrinsbekræftelse er slået til</h2>
<p>Totrinsbekræftelse er netop blevet aktiveret på din konto. Fra nu af skal du bruge en kode fra din authenticator-app, når du logger ind.</p>
<p>Var det ikke dig, så nulstil din adgangskode med det samme og kontakt os.</p>
{{end}}` + frameTemplate

const coachWelcomeTemplate = `{{define "body"}}
<h2 style="margin:0 0 16px 0;font-size:20px;">Velkommen til {{.ClubName}}</h2>
<p>Du er blevet oprettet som træner. Log ind med dit brugernavn og din PIN-kode herunder.</p>
<p style="margin:24px 0 8px 0;"><strong>Brugernavn:</strong> {{.Username}}</p>
<p style="margin:0 0 8px 0;"><strong>PIN-kode:</strong></p>
<table role="presentation" cellpadding="0" cellspacing="0" style="margin:8px 0 24px 0;"><tr>
{{range .PINDigits}}<td style="border:2px solid #1a7f5a;border-radius:6px;width:38px;height:46px;text-align:center;font-size:22px;font-weight:bold;color:#1a7f5a;">{{.}}</td><td style="width:6px;"></td>{{end}}
</tr></table>
<p style="text-align:center;margin:28px 0;">
  <a href="{{.Link}}" style="background-color:#1a7f5a;color:#ffffff;padding:12px 28px;border-radius:6px;text-decoration:none;font-weight:bold;">Log ind</a>
</p>
<p style="color:#888888;font-size:13px;">Opbevar din PIN-kode sikkert. Den vises ikke igen.</p>
{{end}}` + frameTemplate

const pinResetTemplate = `{{define "body"}}
<h2 style="margin:0 0 16px 0;font-size:20px;">Nulstil din PIN-kode</h2>
<p>Vi har modtaget en anmodning om at nulstille PIN-koden for brugernavnet <strong>{{.Username}}</strong>. Linket er gyldigt i 1 time.</p>
<p style="text-align:center;margin:28px 0;">
  <a href="{{.Link}}" style="background-color:#1a7f5a;color:#ffffff;padding:12px 28px;border-radius:6px;text-decoration:none;font-weight:bold;">Nulstil PIN-kode</a>
</p>
<p style="color:#888888;font-size:13px;">Har du ikke bedt om dette, kan du se bort fra denne email.</p>
{{end}}` + frameTemplate

const outreachTemplate = `{{define "body"}}
{{.BodyHTML}}
{{end}}` + frameTemplate

// RegisterTemplates loads every auth email template into the client.
func RegisterTemplates(client *notifx.Client) error {
	templates := map[string]string{
		TemplateVerifyEmail:      verifyEmailTemplate,
		TemplatePasswordReset:    passwordResetTemplate,
		TemplateTwoFactorEnabled: twoFactorEnabledTemplate,
		TemplateCoachWelcome:     coachWelcomeTemplate,
		TemplatePINReset:         pinResetTemplate,
		TemplateOutreach:         outreachTemplate,
	}
	for name, tmpl := range templates {
		if err := client.RegisterTemplate(name, tmpl); err != nil {
			return err
		}
	}
	return nil
}

package auth

import (
	"html/template"
	"strings"
	"testing"

	"github.com/klubhub/klubhub/pkg/notifx"
)

func newTemplateClient(t *testing.T) *notifx.Client {
	t.Helper()
	client := notifx.NewClient(nil)
	if err := RegisterTemplates(client); err != nil {
		t.Fatalf("RegisterTemplates: %v", err)
	}
	return client
}

func TestVerifyEmailTemplateRendersLink(t *testing.T) {
	client := newTemplateClient(t)

	data := linkData{
		frameData: frameData{ShowQuestions: true, ShowAutomatic: true},
		Link:      "https://holte-if.klubhub.dk/verify-email?token=abc",
	}
	body, err := client.Render(TemplateVerifyEmail, data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(body, data.Link) {
		t.Error("rendered body should contain the verification link")
	}
	if !strings.Contains(body, "Bekræft din email") {
		t.Error("rendered body should contain the Danish heading")
	}
	if !strings.Contains(body, "support@klubhub.dk") {
		t.Error("ShowQuestions should render the support footer")
	}
	if !strings.Contains(body, "sendt automatisk") {
		t.Error("ShowAutomatic should render the no-reply footer")
	}
}

func TestCoachWelcomeTemplateRendersPINDigits(t *testing.T) {
	client := newTemplateClient(t)

	data := struct {
		frameData
		ClubName  string
		Username  string
		PINDigits []string
		Link      string
	}{
		ClubName:  "Holte IF",
		Username:  "lars",
		PINDigits: []string{"1", "2", "3", "4", "5", "6"},
		Link:      "https://holte-if.klubhub.dk/login",
	}
	body, err := client.Render(TemplateCoachWelcome, data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, digit := range data.PINDigits {
		if !strings.Contains(body, ">"+digit+"</td>") {
			t.Errorf("digit %q should render in its own cell", digit)
		}
	}
	if !strings.Contains(body, "Holte IF") || !strings.Contains(body, "lars") {
		t.Error("club name and username should render")
	}
}

func TestOutreachTemplateKeepsTrustedHTML(t *testing.T) {
	client := newTemplateClient(t)

	body, err := client.Render(TemplateOutreach, struct {
		frameData
		BodyHTML template.HTML
	}{BodyHTML: template.HTML("<p>Hej <strong>klub</strong></p>")})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(body, "<p>Hej <strong>klub</strong></p>") {
		t.Error("trusted HTML body should pass through unescaped")
	}
}

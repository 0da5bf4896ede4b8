package auth

import "testing"

func TestSignupRequestValidate(t *testing.T) {
	valid := SignupRequest{Email: "a@b.dk", Password: "Passw0rd!", ClubName: "Holte IF"}
	if details := valid.Validate(); len(details) != 0 {
		t.Fatalf("expected valid request, got %v", details)
	}

	if details := (SignupRequest{Email: "nope", Password: "x", ClubName: ""}).Validate(); len(details) != 3 {
		t.Errorf("expected 3 details, got %v", details)
	}

	badPlan := valid
	badPlan.PlanID = "enterprise-gold"
	details := badPlan.Validate()
	if len(details) != 1 || details[0].Path != "planId" {
		t.Errorf("expected planId detail, got %v", details)
	}

	for _, plan := range []string{"", "basic", "professional"} {
		ok := valid
		ok.PlanID = plan
		if details := ok.Validate(); len(details) != 0 {
			t.Errorf("plan %q should be accepted, got %v", plan, details)
		}
	}
}

func TestLoginRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  LoginRequest
		ok   bool
	}{
		{"email pair", LoginRequest{TenantID: "t", Email: "a@b.dk", Password: "pw"}, true},
		{"pin pair", LoginRequest{TenantID: "t", Username: "lars", PIN: "123456"}, true},
		{"both pairs", LoginRequest{TenantID: "t", Email: "a@b.dk", Password: "pw", Username: "lars", PIN: "123456"}, true},
		{"no credentials", LoginRequest{TenantID: "t"}, false},
		{"email without password", LoginRequest{TenantID: "t", Email: "a@b.dk"}, false},
		{"username without pin", LoginRequest{TenantID: "t", Username: "lars"}, false},
		{"missing tenant", LoginRequest{Email: "a@b.dk", Password: "pw"}, false},
	}
	for _, tc := range cases {
		details := tc.req.Validate()
		if got := len(details) == 0; got != tc.ok {
			t.Errorf("%s: valid = %v, want %v (details %v)", tc.name, got, tc.ok, details)
		}
	}
}

func TestLoginRequestFlowSelection(t *testing.T) {
	email := LoginRequest{Email: "a@b.dk", Password: "pw", Username: "lars", PIN: "123456"}
	if !email.IsEmailFlow() {
		t.Error("email present should select the email flow")
	}
	pin := LoginRequest{Username: "lars", PIN: "123456"}
	if pin.IsEmailFlow() {
		t.Error("no email should select the pin flow")
	}
}

func TestPINResetRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  PINResetRequest
		ok   bool
	}{
		{"request ok", PINResetRequest{Action: "request", Email: "a@b.dk", Username: "lars", TenantID: "t"}, true},
		{"request missing username", PINResetRequest{Action: "request", Email: "a@b.dk", TenantID: "t"}, false},
		{"validate ok", PINResetRequest{Action: "validate", Token: "tok"}, true},
		{"validate missing token", PINResetRequest{Action: "validate"}, false},
		{"reset ok", PINResetRequest{Action: "reset", Token: "tok", PIN: "123456"}, true},
		{"reset missing pin", PINResetRequest{Action: "reset", Token: "tok"}, false},
		{"unknown action", PINResetRequest{Action: "explode"}, false},
		{"empty action", PINResetRequest{}, false},
	}
	for _, tc := range cases {
		details := tc.req.Validate()
		if got := len(details) == 0; got != tc.ok {
			t.Errorf("%s: valid = %v, want %v (details %v)", tc.name, got, tc.ok, details)
		}
	}
}

func TestEmailPattern(t *testing.T) {
	cases := map[string]bool{
		"a@b.dk":          true,
		"lars+x@klub.dk":  true,
		"no-at-sign":      false,
		"two@@signs.dk":   false,
		"spaces in@it.dk": false,
		"@missing.local":  false,
	}
	for email, want := range cases {
		if got := emailPattern.MatchString(email); got != want {
			t.Errorf("emailPattern(%q) = %v, want %v", email, got, want)
		}
	}
}

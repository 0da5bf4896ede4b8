package tenantx

import "testing"

func TestNameToSubdomain(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Rødovre Tennisklub", "roedovre-tennisklub"},
		{"Ålborg Padel & Squash", "aalborg-padel-squash"},
		{"Næstved IF", "naestved-if"},
		{"  KB  København  ", "kb-koebenhavn"},
		{"Café Élite", "cafe-elite"},
		{"Club 2000", "club-2000"},
		{"---weird---", "weird"},
		{"ÆØÅ", "aeoeaa"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NameToSubdomain(tc.name); got != tc.want {
			t.Errorf("NameToSubdomain(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidateSubdomain(t *testing.T) {
	valid := []string{"abc", "klub-nord", "a1b2c3", "x23"}
	for _, s := range valid {
		if err := ValidateSubdomain(s); err != nil {
			t.Errorf("ValidateSubdomain(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{
		"ab",              // too short
		"-abc",            // leading hyphen
		"abc-",            // trailing hyphen
		"ab_c",            // bad character
		"Abc",             // uppercase
		"abc.def",         // dot
		string(make([]byte, 64)), // too long
	}
	for _, s := range invalid {
		if err := ValidateSubdomain(s); err == nil {
			t.Errorf("ValidateSubdomain(%q) = nil, want error", s)
		}
	}
}

func TestValidateSubdomainReserved(t *testing.T) {
	for _, s := range []string{"www", "demo", "api", "admin", "mail", "ftp", "localhost", "marketing"} {
		if err := ValidateSubdomain(s); err == nil {
			t.Errorf("ValidateSubdomain(%q) accepted a reserved name", s)
		}
	}
}

func TestCoachLimit(t *testing.T) {
	if got := (Config{PlanID: "basic"}).CoachLimit(); got != 2 {
		t.Errorf("basic limit = %d, want 2", got)
	}
	if got := (Config{}).CoachLimit(); got != 2 {
		t.Errorf("default limit = %d, want 2", got)
	}
	if got := (Config{PlanID: "professional"}).CoachLimit(); got != -1 {
		t.Errorf("professional limit = %d, want -1", got)
	}
}

package validation

import "testing"

func int64p(v int64) *int64 { return &v }

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"trims whitespace", "  hello  ", 100, "hello"},
		{"caps length", "abcdef", 3, "abc"},
		{"strips null bytes", "ab\x00cd", 100, "abcd"},
		{"empty", "", 100, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNonNegative(t *testing.T) {
	if err := NonNegative("points", nil)(); err != nil {
		t.Errorf("nil pointer should pass, got %v", err)
	}
	if err := NonNegative("points", int64p(0))(); err != nil {
		t.Errorf("zero should pass, got %v", err)
	}
	if err := NonNegative("points", int64p(-1))(); err == nil {
		t.Error("negative value should fail")
	}
}

func TestDateFormat(t *testing.T) {
	if err := DateFormat("date", "")(); err != nil {
		t.Errorf("empty date should pass, got %v", err)
	}
	if err := DateFormat("date", "2026-02-15")(); err != nil {
		t.Errorf("valid date should pass, got %v", err)
	}
	if err := DateFormat("date", "15/02/2026")(); err == nil {
		t.Error("slash date should fail")
	}
	if err := DateFormat("date", "2026-13-40")(); err == nil {
		t.Error("out-of-range date should fail")
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	errs := Validate(
		Required("accountId", ""),
		NonNegative("pointsRedeemed", int64p(-5)),
		DateFormat("date", "2026-01-01"),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs.Error() == "" {
		t.Error("expected non-empty error string")
	}
}

func TestValidate_AllPass(t *testing.T) {
	errs := Validate(
		Required("type", "REDEMPTION"),
		MaxLength("note", "short", 100),
	)
	if errs != nil {
		t.Fatalf("expected nil, got %v", errs)
	}
}

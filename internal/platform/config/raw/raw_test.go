package raw

import "testing"

func TestEnv(t *testing.T) {
	env := Map(map[string]string{
		"LOG_LEVEL":  " WARN ",
		"LOG_CALLER": "yes",
		"LOG_COLOR":  "0",
		"LOG_BAD":    "maybe",
		"LOG_N":      "12",
		"LOG_NEG":    "-3",
		"LOG_BLANK":  "  ",
		"OTHER":      "x",
	}).Prefix("LOG_")

	if got := env.String("LEVEL", "info"); got != "WARN" {
		t.Fatalf("String = %q", got)
	}
	if got := env.String("BLANK", "def"); got != "def" {
		t.Fatalf("blank should fall back, got %q", got)
	}
	if env.String("OTHER", "none") != "none" {
		t.Fatalf("prefix not applied")
	}

	bools := []struct {
		key  string
		def  bool
		want bool
	}{
		{"CALLER", false, true},
		{"COLOR", true, false},
		{"BAD", true, true},
		{"MISSING", false, false},
	}
	for _, b := range bools {
		if got := env.Bool(b.key, b.def); got != b.want {
			t.Fatalf("Bool(%s) = %v", b.key, got)
		}
	}

	if env.Int("N", 0) != 12 || env.Int("NEG", 7) != 7 || env.Int("BAD", 1) != 1 {
		t.Fatalf("Int parsing")
	}
	if got := env.OneOf("LEVEL", "info", "debug", "warn"); got != "warn" {
		t.Fatalf("OneOf = %q", got)
	}
	if got := env.OneOf("BAD", "info", "debug", "warn"); got != "info" {
		t.Fatalf("OneOf fallback = %q", got)
	}
}

func TestNew_ReadsProcessEnv(t *testing.T) {
	t.Setenv("HITCLUST_RAW_PROBE", "on")
	if !New().Prefix("HITCLUST_").Bool("RAW_PROBE", false) {
		t.Fatalf("process env not read")
	}
}

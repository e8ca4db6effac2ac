package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	kit "hitclust/internal/platform/testkit"
)

func TestPrefix(t *testing.T) {
	c := FromMap(map[string]string{"CORE_RUNS_WORKERS": "3", "WORKERS": "9"})
	runs := c.Prefix("CORE_").Prefix("RUNS_")
	if got := runs.key("WORKERS"); got != "CORE_RUNS_WORKERS" {
		t.Fatalf("key = %q", got)
	}
	if runs.MayInt("WORKERS", 0) != 3 || c.MayInt("WORKERS", 0) != 9 {
		t.Fatalf("prefixes resolved to the wrong variable")
	}
}

func TestNew_ReadsEnvironment(t *testing.T) {
	t.Setenv("HITCLUST_CFG_PROBE", " 250ms ")
	if got := New().Prefix("HITCLUST_CFG_").MayDuration("PROBE", 0); got != 250*time.Millisecond {
		t.Fatalf("MayDuration = %v", got)
	}
}

func TestMay_Scalars(t *testing.T) {
	c := FromMap(map[string]string{
		"NAME":     "  hitclust ",
		"BLANK":    "   ",
		"WORKERS":  "8",
		"BAD_INT":  "eight",
		"SPAN":     "300",
		"RADIUS":   "1.5",
		"NEG":      "-2",
		"ON":       "true",
		"BAD_BOOL": "sometimes",
		"WAIT":     "2s",
		"BAD_DUR":  "2 seconds",
	})

	if got := c.MayString("NAME", "x"); got != "hitclust" {
		t.Fatalf("MayString = %q", got)
	}
	if got := c.MayString("BLANK", "def"); got != "def" {
		t.Fatalf("blank should fall back, got %q", got)
	}
	if c.Has("BLANK") || !c.Has("NAME") {
		t.Fatalf("Has")
	}

	ints := []struct {
		got, want int
	}{
		{c.MayInt("WORKERS", 1), 8},
		{c.MayInt("BAD_INT", 1), 1},
		{c.MayInt("MISSING", 4), 4},
		{c.MayIntIn("WORKERS", 2, 1, 16), 8},
		{c.MayIntIn("SPAN", 2, 1, 256), 2},
		{c.MayIntIn("BAD_INT", 5, 1, 10), 5},
	}
	for i, v := range ints {
		if v.got != v.want {
			t.Fatalf("int case %d: %d, want %d", i, v.got, v.want)
		}
	}

	if c.MayFloatMin("RADIUS", 1, 0) != 1.5 || c.MayFloatMin("NEG", 1, 0) != 1 {
		t.Fatalf("MayFloatMin")
	}
	if !c.MayBool("ON", false) || !c.MayBool("BAD_BOOL", true) || c.MayBool("MISSING", false) {
		t.Fatalf("MayBool")
	}
	if c.MayDuration("WAIT", 0) != 2*time.Second || c.MayDuration("BAD_DUR", time.Second) != time.Second {
		t.Fatalf("MayDuration")
	}
}

func TestMayAddr(t *testing.T) {
	c := FromMap(map[string]string{
		"BARE": "9090",
		"FULL": "127.0.0.1:7000",
		"ZERO": "0",
		"HUGE": ":70000",
		"JUNK": "localhost:http:x",
	})
	cases := map[string]string{
		"BARE":    ":9090",
		"FULL":    "127.0.0.1:7000",
		"ZERO":    ":0",
		"HUGE":    ":8080",
		"JUNK":    ":8080",
		"MISSING": ":8080",
	}
	for key, want := range cases {
		if got := c.MayAddr(key, ":8080"); got != want {
			t.Fatalf("MayAddr(%s) = %q, want %q", key, got, want)
		}
	}
}

func TestMayCSV(t *testing.T) {
	c := FromMap(map[string]string{"ORIGINS": " http://a , ,http://b,", "EMPTY": " , ,"})
	if got := c.MayCSV("ORIGINS", nil); !slices.Equal(got, []string{"http://a", "http://b"}) {
		t.Fatalf("MayCSV = %v", got)
	}
	def := []string{"*"}
	if got := c.MayCSV("EMPTY", def); !slices.Equal(got, def) {
		t.Fatalf("all blank should fall back, got %v", got)
	}
	if got := c.MayCSV("MISSING", def); !slices.Equal(got, def) {
		t.Fatalf("missing should fall back, got %v", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := FromMap(map[string]string{"INDEX": "QUAD", "FORMAT": "xml"})
	if got := c.MayEnum("INDEX", "adaptive", "adaptive", "linear", "quad"); got != "quad" {
		t.Fatalf("MayEnum = %q", got)
	}
	if got := c.MayEnum("MISSING", "adaptive", "adaptive", "quad"); got != "adaptive" {
		t.Fatalf("default = %q", got)
	}
	kit.MustPanic(t, func() { _ = c.MayEnum("FORMAT", "processed", "processed", "raw") })
}

func TestMayFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pixel_config.txt")
	if err := os.WriteFile(file, []byte("0 0 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := FromMap(map[string]string{"CALIB": file, "DIR": dir, "GONE": filepath.Join(dir, "nope")})

	if got := c.MayFile("CALIB"); got != file {
		t.Fatalf("MayFile = %q", got)
	}
	for _, k := range []string{"DIR", "GONE", "MISSING"} {
		if got := c.MayFile(k); got != "" {
			t.Fatalf("MayFile(%s) = %q, want empty", k, got)
		}
	}
}

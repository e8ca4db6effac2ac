package module

import (
	"strings"
	"testing"

	phttp "hitclust/internal/platform/net/http"
)

type Counter interface{ Count() int }

type counter int

func (c counter) Count() int { return int(c) }

type Stopper interface{ Stop() }

type portSet struct {
	Empty   Counter
	Counter Counter
	Limit   int
}

type fake struct {
	name  string
	ports any
}

func (f fake) Name() string             { return f.name }
func (f fake) MountRoutes(phttp.Router) {}
func (f fake) Ports() any               { return f.ports }

func TestPortsOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		ports any
		want  int
		ok    bool
	}{
		{"nil", nil, 0, false},
		{"direct", counter(3), 3, true},
		{"struct field", portSet{Counter: counter(5)}, 5, true},
		{"pointer to struct", &portSet{Counter: counter(7)}, 7, true},
		{"nil fields skipped", portSet{Limit: 1}, 0, false},
		{"scalar", 42, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := PortsOf[Counter](fake{name: "runs", ports: tc.ports})
			if ok != tc.ok {
				t.Fatalf("ok %v want %v", ok, tc.ok)
			}
			if ok && got.Count() != tc.want {
				t.Fatalf("count %d want %d", got.Count(), tc.want)
			}
		})
	}
}

func TestMustPortsOf_PanicNamesModule(t *testing.T) {
	t.Parallel()

	defer func() {
		msg, _ := recover().(string)
		if !strings.Contains(msg, "online") || !strings.Contains(msg, "Stopper") {
			t.Fatalf("panic %q", msg)
		}
	}()
	MustPortsOf[Stopper](fake{name: "online", ports: portSet{Counter: counter(1)}})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(fake{name: "runs", ports: portSet{Counter: counter(9)}})
	r.Register(fake{name: "meta"})

	if got := r.Names(); len(got) != 2 || got[0] != "meta" || got[1] != "runs" {
		t.Fatalf("names %v", got)
	}
	c, ok := Lookup[Counter](r, "runs")
	if !ok || c.Count() != 9 {
		t.Fatalf("lookup runs: %v %v", c, ok)
	}
	if _, ok := Lookup[Counter](r, "meta"); ok {
		t.Fatal("meta exposes no ports")
	}
	if _, ok := Lookup[Counter](r, "online"); ok {
		t.Fatal("online was never registered")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("duplicate name should panic")
		}
	}()
	r.Register(fake{name: "runs"})
}

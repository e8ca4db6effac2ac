package snapshot

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
)

func sample() []hit.Cluster {
	a := hit.NewCluster(hit.Pixel{X: 1, Y: 2, Value: 3, Time: 4.5})
	a.Add(hit.Pixel{X: 2, Y: 2, Value: -1, Time: 6})
	b := hit.NewCluster(hit.Pixel{X: 255, Y: 0, Value: 9, Time: 1e12})
	return []hit.Cluster{*a, *b}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Parallel()

	h := Header{RunID: "run-1", Params: clusterer.Params{Delay: 500, Span: 300}, Created: time.Unix(1700000000, 42).UTC()}
	var buf bytes.Buffer
	w, err := NewWriter(&buf, h)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, c := range sample() {
		w.Push(c)
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n, hits := w.Written(); n != 2 || hits != 3 {
		t.Fatalf("Written = %d, %d", n, hits)
	}
	// pushes after the trailer are ignored
	w.Push(sample()[0])

	got, cs, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.RunID != h.RunID || got.Params != h.Params || !got.Created.Equal(h.Created) {
		t.Fatalf("header %+v want %+v", got, h)
	}
	want := sample()
	if len(cs) != len(want) {
		t.Fatalf("got %d clusters", len(cs))
	}
	for i := range want {
		if len(cs[i].Pixels) != len(want[i].Pixels) || cs[i].MinTime != want[i].MinTime || cs[i].XMax != want[i].XMax {
			t.Fatalf("cluster %d: %+v want %+v", i, cs[i], want[i])
		}
		for j := range want[i].Pixels {
			if cs[i].Pixels[j] != want[i].Pixels[j] {
				t.Fatalf("pixel %d/%d: %+v want %+v", i, j, cs[i].Pixels[j], want[i].Pixels[j])
			}
		}
	}
}

func TestRead_RejectsDamage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, Header{RunID: "x"})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	w.Push(sample()[0])
	// no Flush: the stream has no trailer and no zstd end marker
	_ = w.enc.Flush()
	_ = w.bw.Flush()
	if _, _, err := Read(bytes.NewReader(buf.Bytes())); !perr.IsCode(err, perr.ErrorCodeMalformedFrame) {
		t.Fatalf("unterminated snapshot: %v", err)
	}

	if _, _, err := Read(bytes.NewReader([]byte("plain text"))); !perr.IsCode(err, perr.ErrorCodeMalformedFrame) {
		t.Fatalf("not zstd: %v", err)
	}
}

func TestCreateAndReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.hcs")
	w, err := Create(path, Header{RunID: "file"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w.Push(sample()[1])
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	h, cs, err := ReadFile(path)
	if err != nil || h.RunID != "file" || len(cs) != 1 {
		t.Fatalf("ReadFile: %+v %v err=%v", h, cs, err)
	}
	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

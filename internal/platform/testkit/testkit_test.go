package testkit

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var lutSize = 1 << 14

func TestMustPanic(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
}

func TestMustNotPanic(t *testing.T) {
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	MustContain(t, "C1;\r\n10\t10\t5\t0", "10\t10")
	MustContain(t, strings.Repeat("x", 1024)+"needle", "needle")
}

func TestWriteFile_Nested(t *testing.T) {
	p := WriteFile(t, "calib/a.txt", "1 2 3\n")
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "1 2 3\n" {
		t.Fatalf("content mismatch: %q", b)
	}
}

func TestEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		for range 3 {
			time.Sleep(2 * time.Millisecond)
			n.Add(1)
		}
	}()
	Eventually(t, time.Second, func() bool { return n.Load() == 3 }, "counter reaches 3")
}

func TestSwap_RestoresAfterSubtest(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Swap(t, &lutSize, 0)
		if lutSize != 0 {
			t.Fatalf("lutSize %d", lutSize)
		}
	})
	if lutSize != 1<<14 {
		t.Fatalf("not restored: %d", lutSize)
	}
}

func TestSerial_NoInterleaving(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	note := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}
	t.Run("group", func(t *testing.T) {
		for _, name := range []string{"a", "b"} {
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				Serial(t)
				note(name + "+")
				time.Sleep(20 * time.Millisecond)
				note(name + "-")
			})
		}
	})
	if len(log) != 4 || log[0][0] != log[1][0] || log[2][0] != log[3][0] {
		t.Fatalf("interleaved: %v", log)
	}
}

package version

import "testing"

func TestInfo(t *testing.T) {
	defer SetService(service)
	SetService("hitclust-batch")

	bi := Info()
	if bi.Service != "hitclust-batch" || bi.Version != "dev" {
		t.Fatalf("info %+v", bi)
	}
	if bi.Commit == "" || bi.Date == "" {
		t.Fatalf("commit and date need a fallback: %+v", bi)
	}
}

package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/hit"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/store"
	"hitclust/internal/platform/testkit"
	"hitclust/internal/services/clustering/domain"
	"hitclust/internal/services/clustering/repo"
)

func waitRun(t *testing.T, m *Runs, id string) domain.Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return r
}

func TestRuns_InlinePixelsInMemory(t *testing.T) {
	t.Parallel()

	m := NewRuns(context.Background(), domain.Options{Workers: 2, Params: testParams}, RunsOptions{})
	ps := testStream()
	r, err := m.Start(context.Background(), domain.RunRequest{Pixels: ps})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Status != domain.RunRunning || r.ID == "" {
		t.Fatalf("start view %+v", r)
	}
	r = waitRun(t, m, r.ID)
	if r.Status != domain.RunDone || r.Stats == nil || r.Stats.Hits != int64(len(ps)) {
		t.Fatalf("finished view %+v", r)
	}

	page, total, err := m.Clusters(context.Background(), r.ID, domain.Page{Limit: 5, Offset: 2})
	if err != nil {
		t.Fatalf("Clusters: %v", err)
	}
	if total != r.Stats.Clusters || len(page) != 5 || page[0].No != 2 {
		t.Fatalf("total %d page %d first %d", total, len(page), page[0].No)
	}

	list, _ := m.List(context.Background())
	if len(list) != 1 || list[0].ID != r.ID {
		t.Fatalf("list %+v", list)
	}
}

func TestRuns_PersistsToStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{Lite: store.LiteConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "runs.db")}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })
	cs := repo.NewSQL(st.Lite).Bind(st.Lite)
	if err := cs.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	m := NewRuns(ctx, domain.Options{Workers: 3, Params: testParams}, RunsOptions{Store: cs, Batch: 16})
	r, err := m.Start(ctx, domain.RunRequest{Pixels: testStream()})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	r = waitRun(t, m, r.ID)
	if r.Status != domain.RunDone {
		t.Fatalf("run %+v", r)
	}
	page, total, err := m.Clusters(ctx, r.ID, domain.Page{Limit: 1000})
	if err != nil {
		t.Fatalf("Clusters: %v", err)
	}
	if total != r.Stats.Clusters || int64(len(page)) != total {
		t.Fatalf("stored %d listed %d want %d", total, len(page), r.Stats.Clusters)
	}
	px := 0
	for _, c := range page {
		px += len(c.Pixels)
	}
	if px != len(testStream()) {
		t.Fatalf("stored %d pixels", px)
	}
}

func TestRuns_LoaderAndOverrides(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotRaw bool
	load := func(_ context.Context, path string, raw bool) ([]hit.Pixel, error) {
		gotPath, gotRaw = path, raw
		return []hit.Pixel{{X: 1, Y: 1, Time: 0}, {X: 1, Y: 1, Time: 500}}, nil
	}
	m := NewRuns(context.Background(), domain.Options{Params: testParams}, RunsOptions{Load: load})
	r, err := m.Start(context.Background(), domain.RunRequest{
		Path:   "hits.txt",
		Raw:    true,
		Params: &clusterer.Params{Delay: 1000, Span: 1000},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	r = waitRun(t, m, r.ID)
	if gotPath != "hits.txt" || !gotRaw {
		t.Fatalf("loader got %q raw=%v", gotPath, gotRaw)
	}
	// the wider windows join the two hits
	if r.Stats.Clusters != 1 {
		t.Fatalf("clusters %d", r.Stats.Clusters)
	}
}

func TestRuns_FailedLoad(t *testing.T) {
	t.Parallel()

	load := func(context.Context, string, bool) ([]hit.Pixel, error) {
		return nil, perr.NotFoundf("no such file")
	}
	m := NewRuns(context.Background(), domain.Options{Params: testParams}, RunsOptions{Load: load})
	r, err := m.Start(context.Background(), domain.RunRequest{Path: "missing"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	r = waitRun(t, m, r.ID)
	if r.Status != domain.RunFailed {
		t.Fatalf("status %s", r.Status)
	}
	testkit.MustContain(t, r.Error, "no such file")
}

func TestRuns_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewRuns(ctx, domain.Options{Params: testParams}, RunsOptions{})

	if _, err := m.Start(ctx, domain.RunRequest{}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("empty request: %v", err)
	}
	if _, err := m.Start(ctx, domain.RunRequest{Path: "x"}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("path without loader: %v", err)
	}
	bad := clusterer.Params{Delay: -5}
	if _, err := m.Start(ctx, domain.RunRequest{Pixels: testStream(), Params: &bad}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad params: %v", err)
	}
	off := append(testStream()[:3], hit.Pixel{X: 256, Y: 10, Value: 1, Time: 1e9})
	_, err := m.Start(ctx, domain.RunRequest{Pixels: off})
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("off-grid pixel: %v", err)
	}
	testkit.MustContain(t, err.Error(), "pixel 3")
	if _, err := m.Get(ctx, "nope"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("unknown run: %v", err)
	}

	r, _ := m.Start(ctx, domain.RunRequest{Pixels: testStream()[:10]})
	waitRun(t, m, r.ID)
	if _, err := m.Cancel(ctx, r.ID); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("cancel finished run: %v", err)
	}
}

func TestRuns_Cancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	load := func(ctx context.Context, _ string, _ bool) ([]hit.Pixel, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return testStream(), nil
	}
	m := NewRuns(context.Background(), domain.Options{Params: testParams}, RunsOptions{Load: load})
	r, err := m.Start(context.Background(), domain.RunRequest{Path: "slow"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := m.Clusters(context.Background(), r.ID, domain.Page{}); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("clusters of a running run: %v", err)
	}
	r, err = m.Cancel(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if r.Status != domain.RunCanceled || r.Finished == nil {
		t.Fatalf("after cancel %+v", r)
	}
	close(release)
}

func TestRuns_RetainsNewest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewRuns(ctx, domain.Options{Params: testParams}, RunsOptions{Retain: 2})
	var ids []string
	for range 4 {
		r, err := m.Start(ctx, domain.RunRequest{Pixels: testStream()[:5]})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		waitRun(t, m, r.ID)
		ids = append(ids, r.ID)
	}
	list, _ := m.List(ctx)
	if len(list) != 2 || list[0].ID != ids[3] || list[1].ID != ids[2] {
		t.Fatalf("kept %+v", list)
	}
}

func TestRuns_PurgesForgottenRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{Lite: store.LiteConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "runs.db")}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })
	cs := repo.NewSQL(st.Lite).Bind(st.Lite)
	if err := cs.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	m := NewRuns(ctx, domain.Options{Params: testParams}, RunsOptions{Store: cs, Retain: 1})
	first, err := m.Start(ctx, domain.RunRequest{Pixels: testStream()[:5]})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitRun(t, m, first.ID)
	if n, _ := cs.Count(ctx, first.ID); n == 0 {
		t.Fatalf("first run not stored")
	}

	second, err := m.Start(ctx, domain.RunRequest{Pixels: testStream()[:5]})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitRun(t, m, second.ID)
	testkit.Eventually(t, 5*time.Second, func() bool {
		n, err := cs.Count(ctx, first.ID)
		return err == nil && n == 0
	}, "forgotten run still stored")
	if _, err := m.Get(ctx, first.ID); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("first run still listed: %v", err)
	}
}

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/termwatch/internal/policy"
	"github.com/ppiankov/termwatch/internal/taxonomy"
)

const reloadTaxonomy = `forbidden: พี่
family_address: [ลุง, ป้า]
monk_address: [ท่าน]
monk_self_reference: [หลวงพ่อ]
prefixes: [คุณ]
negation: ไม่ใช่
`

func startReloader(t *testing.T, paths []string, build func() (*policy.Evaluator, error)) (<-chan *policy.Evaluator, context.CancelFunc) {
	t.Helper()
	applied := make(chan *policy.Evaluator, 4)
	r, err := NewReloader(paths, build, func(e *policy.Evaluator) { applied <- e })
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	r.delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	return applied, cancel
}

func TestReloaderAppliesRebuiltEvaluator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(reloadTaxonomy), 0600); err != nil {
		t.Fatal(err)
	}

	build := func() (*policy.Evaluator, error) {
		tax, err := taxonomy.Load(path)
		if err != nil {
			return nil, err
		}
		return policy.New(tax, nil), nil
	}
	applied, cancel := startReloader(t, []string{path}, build)
	defer cancel()

	updated := reloadTaxonomy + "# edited\n"
	if err := os.WriteFile(path, []byte(updated), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-applied:
		if len(e.Taxonomy().InCategory(taxonomy.FamilyAddress)) != 2 {
			t.Errorf("reloaded taxonomy family terms = %v", e.Taxonomy().InCategory(taxonomy.FamilyAddress))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("evaluator was not reloaded")
	}
}

func TestReloaderIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(reloadTaxonomy), 0600); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	calls := 0
	build := func() (*policy.Evaluator, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return policy.New(nil, nil), nil
	}
	_, cancel := startReloader(t, []string{path}, build)
	defer cancel()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("rebuild called %d times for unrelated file", calls)
	}
}

func TestReloaderKeepsEvaluatorOnBuildError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(reloadTaxonomy), 0600); err != nil {
		t.Fatal(err)
	}

	build := func() (*policy.Evaluator, error) { return nil, errors.New("broken taxonomy") }
	applied, cancel := startReloader(t, []string{path}, build)
	defer cancel()

	if err := os.WriteFile(path, []byte("forbidden: [\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-applied:
		t.Fatal("evaluator applied after failed rebuild")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestReloaderSkipsEmptyAndMissingPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")

	r, err := NewReloader([]string{"", path, filepath.Join(dir, "missing", "lexicon.txt")},
		func() (*policy.Evaluator, error) { return policy.New(nil, nil), nil },
		func(*policy.Evaluator) {})
	if err != nil {
		t.Fatalf("NewReloader: %v", err)
	}
	defer r.watcher.Close()

	if r.Watched() != 1 {
		t.Errorf("Watched() = %d, want 1", r.Watched())
	}
}

func TestProcessorSetEvaluator(t *testing.T) {
	p := NewProcessor(ProcessorConfig{})
	latest := policy.New(nil, nil, policy.WithMode(policy.Latest))
	p.SetEvaluator(latest)
	if p.Evaluator() != latest {
		t.Error("SetEvaluator did not replace the evaluator")
	}
}

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/foragen/foragen-cli/pkg/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func def(name, description string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:        name,
		Description: description,
		Steps:       []models.WorkflowStep{{ID: "a", Agent: "general-purpose", Task: "do it"}},
	}
}

func writeRaw(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

type testEnv struct {
	store   *Store
	clock   *fakeClock
	user    string
	project string
}

func newTestStore(t *testing.T, builtin fstest.MapFS, opts ...Option) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		clock:   newFakeClock(),
		user:    filepath.Join(root, "user", "workflows"),
		project: filepath.Join(root, "project", ".foragen", "workflows"),
	}
	if builtin == nil {
		builtin = fstest.MapFS{}
	}
	opts = append([]Option{WithClock(env.clock.Now), WithBuiltinFS(builtin)}, opts...)
	env.store = New(Config{UserDir: env.user, ProjectDir: env.project}, opts...)
	return env
}

func TestEmbeddedBuiltins(t *testing.T) {
	s := New(Config{})

	for _, name := range []string{"code-review", "bug-fix"} {
		d, err := s.Load(name)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if len(d.Steps) == 0 {
			t.Errorf("%s has no steps", name)
		}
		meta, err := s.Resolve(name)
		if err != nil || meta.Level != LevelBuiltin {
			t.Errorf("Resolve(%s) = %+v, %v", name, meta, err)
		}
	}
}

func TestPrecedence(t *testing.T) {
	builtin := fstest.MapFS{
		"deploy.json": {Data: []byte(`{"name":"deploy","description":"builtin","steps":[{"id":"a","agent":"x","task":"t"}]}`)},
		"lint.json":   {Data: []byte(`{"name":"lint","description":"builtin","steps":[{"id":"a","agent":"x","task":"t"}]}`)},
	}
	env := newTestStore(t, builtin)

	if err := env.store.Create(def("deploy", "user"), LevelUser, false); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	if d, _ := env.store.Load("deploy"); d.Description != "user" {
		t.Errorf("user should beat builtin, got %q", d.Description)
	}

	if err := env.store.Create(def("deploy", "project"), LevelProject, false); err != nil {
		t.Fatalf("Create project: %v", err)
	}
	if d, _ := env.store.Load("deploy"); d.Description != "project" {
		t.Errorf("project should beat user, got %q", d.Description)
	}
	if d, _ := env.store.Load("lint"); d.Description != "builtin" {
		t.Errorf("lint = %q, want builtin", d.Description)
	}

	all, err := env.store.List(Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("effective list = %+v, want 2 entries", all)
	}
	if all[0].Name != "deploy" || all[0].Level != LevelProject {
		t.Errorf("deploy entry = %+v", all[0])
	}

	users, err := env.store.List(Filter{Level: LevelUser})
	if err != nil || len(users) != 1 || users[0].Description != "user" {
		t.Errorf("user list = %+v, %v", users, err)
	}
}

func TestLoadNotFound(t *testing.T) {
	env := newTestStore(t, nil)
	if _, err := env.store.Load("missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	env := newTestStore(t, nil)
	if err := env.store.Create(def("copy", "original"), LevelUser, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	d, _ := env.store.Load("copy")
	d.Description = "mutated"
	d.Steps[0].Task = "mutated"

	again, _ := env.store.Load("copy")
	if again.Description != "original" || again.Steps[0].Task != "do it" {
		t.Errorf("cached definition was mutated: %+v", again)
	}
}

func TestCacheTTL(t *testing.T) {
	env := newTestStore(t, nil)

	if _, err := env.store.List(Filter{}); err != nil {
		t.Fatalf("List: %v", err)
	}

	// External edit, not through the store.
	writeRaw(t, env.user, "external.json", `{"name":"external","steps":[{"id":"a","agent":"x","task":"t"}]}`)

	if _, err := env.store.Load("external"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("fresh cache should hide external edit, got %v", err)
	}

	env.clock.Advance(59 * time.Second)
	if _, err := env.store.Load("external"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("cache should still be fresh at 59s, got %v", err)
	}

	env.clock.Advance(time.Second)
	if _, err := env.store.Load("external"); err != nil {
		t.Fatalf("cache should refresh after the TTL, got %v", err)
	}
}

func TestCustomCacheTTL(t *testing.T) {
	root := t.TempDir()
	clock := newFakeClock()
	s := New(Config{UserDir: root, CacheTTL: 5 * time.Second}, WithClock(clock.Now), WithBuiltinFS(fstest.MapFS{}))

	if _, err := s.List(Filter{}); err != nil {
		t.Fatalf("List: %v", err)
	}
	writeRaw(t, root, "late.json", `{"name":"late","steps":[{"id":"a","agent":"x","task":"t"}]}`)

	clock.Advance(5 * time.Second)
	if _, err := s.Load("late"); err != nil {
		t.Fatalf("Load after custom TTL: %v", err)
	}
}

func TestMutationsInvalidateCache(t *testing.T) {
	env := newTestStore(t, nil)
	s := env.store

	if err := s.Create(def("flow", "v1"), LevelProject, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d, err := s.Load("flow"); err != nil || d.Description != "v1" {
		t.Fatalf("Load after create = %+v, %v", d, err)
	}

	if err := s.Update("flow", def("flow", "v2")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if d, _ := s.Load("flow"); d.Description != "v2" {
		t.Errorf("Load after update = %q, want v2", d.Description)
	}

	if err := s.Delete("flow"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load("flow"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Load after delete error = %v, want ErrNotFound", err)
	}
}

func TestCreate(t *testing.T) {
	env := newTestStore(t, nil)
	s := env.store

	if err := s.Create(def("once", "first"), LevelUser, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.user, "once.json")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	if err := s.Create(def("once", "second"), LevelUser, false); !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("Create duplicate error = %v, want ErrAlreadyExists", err)
	}
	if err := s.Create(def("once", "second"), LevelUser, true); err != nil {
		t.Errorf("Create with overwrite: %v", err)
	}
	if d, _ := s.Load("once"); d.Description != "second" {
		t.Errorf("Description = %q, want second", d.Description)
	}

	// Same name at another level is not a collision.
	if err := s.Create(def("once", "project"), LevelProject, false); err != nil {
		t.Errorf("Create at project level: %v", err)
	}

	if err := s.Create(def("ro", ""), LevelBuiltin, false); !errors.Is(err, models.ErrReadOnly) {
		t.Errorf("Create builtin error = %v, want ErrReadOnly", err)
	}

	invalid := def("bad", "")
	invalid.Steps = append(invalid.Steps, models.WorkflowStep{ID: "a"})
	if err := s.Create(invalid, LevelUser, false); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Create invalid error = %v, want ErrInvalidConfig", err)
	}
	if _, err := os.Stat(filepath.Join(env.user, "bad.json")); !os.IsNotExist(err) {
		t.Error("invalid definition must not be written")
	}
}

func TestUpdate(t *testing.T) {
	builtin := fstest.MapFS{
		"shipped.json": {Data: []byte(`{"name":"shipped","steps":[{"id":"a","agent":"x","task":"t"}]}`)},
	}
	env := newTestStore(t, builtin)
	s := env.store

	if err := s.Update("ghost", def("ghost", "")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Update missing error = %v, want ErrNotFound", err)
	}
	if err := s.Update("shipped", def("shipped", "edited")); !errors.Is(err, models.ErrReadOnly) {
		t.Errorf("Update builtin error = %v, want ErrReadOnly", err)
	}

	if err := s.Create(def("old", "x"), LevelUser, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	bad := def("old", "x")
	bad.Steps[0].DependsOn = []string{"nope"}
	if err := s.Update("old", bad); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Update invalid error = %v, want ErrInvalidConfig", err)
	}

	if err := s.Update("old", def("new", "renamed")); err != nil {
		t.Fatalf("Update rename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.user, "old.json")); !os.IsNotExist(err) {
		t.Error("old file should be removed after rename")
	}
	if _, err := s.Load("old"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Load(old) error = %v, want ErrNotFound", err)
	}
	if d, err := s.Load("new"); err != nil || d.Description != "renamed" {
		t.Errorf("Load(new) = %+v, %v", d, err)
	}
}

func TestDelete(t *testing.T) {
	builtin := fstest.MapFS{
		"shipped.json": {Data: []byte(`{"name":"shipped","steps":[{"id":"a","agent":"x","task":"t"}]}`)},
	}
	env := newTestStore(t, builtin)
	s := env.store

	if err := s.Delete("ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Delete missing error = %v, want ErrNotFound", err)
	}
	if err := s.Delete("shipped"); !errors.Is(err, models.ErrReadOnly) {
		t.Errorf("Delete builtin error = %v, want ErrReadOnly", err)
	}

	// Deleting a project override reveals the builtin again.
	if err := s.Create(def("shipped", "override"), LevelProject, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete("shipped"); err != nil {
		t.Fatalf("Delete override: %v", err)
	}
	meta, err := s.Resolve("shipped")
	if err != nil || meta.Level != LevelBuiltin {
		t.Errorf("Resolve after delete = %+v, %v", meta, err)
	}
}

func TestListSorting(t *testing.T) {
	env := newTestStore(t, nil)
	for _, name := range []string{"bravo", "alpha", "charlie"} {
		if err := env.store.Create(def(name, ""), LevelUser, false); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mtimes := map[string]time.Time{
		"alpha":   base.Add(2 * time.Hour),
		"bravo":   base,
		"charlie": base.Add(time.Hour),
	}
	for name, mt := range mtimes {
		if err := os.Chtimes(filepath.Join(env.user, name+".json"), mt, mt); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	env.store.Invalidate()

	names := func(f Filter) []string {
		list, err := env.store.List(f)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		var out []string
		for _, m := range list {
			out = append(out, m.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"name asc", Filter{}, []string{"alpha", "bravo", "charlie"}},
		{"name desc", Filter{Descending: true}, []string{"charlie", "bravo", "alpha"}},
		{"modified asc", Filter{SortBy: SortByModified}, []string{"bravo", "charlie", "alpha"}},
		{"modified desc", Filter{SortBy: SortByModified, Descending: true}, []string{"alpha", "charlie", "bravo"}},
		{"project level", Filter{Level: LevelProject}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := names(tt.filter); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("List() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMalformedFilesAreSkipped(t *testing.T) {
	env := newTestStore(t, nil)
	writeRaw(t, env.project, "broken.json", `{"name": "broken", "steps": [`)
	writeRaw(t, env.project, "notes.txt", `not a workflow`)
	writeRaw(t, env.project, "good.json", `{"name":"good","steps":[{"id":"a","agent":"x","task":"t"}]}`)

	list, err := env.store.List(Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "good" {
		t.Errorf("List() = %+v, want only good", list)
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("Project"); err != nil || l != LevelProject {
		t.Errorf("ParseLevel(Project) = %q, %v", l, err)
	}
	if _, err := ParseLevel("global"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// fakeRunner records the definition and overrides it was given.
type fakeRunner struct {
	def       *models.WorkflowDefinition
	overrides map[string]any
}

func (r *fakeRunner) Execute(_ context.Context, def *models.WorkflowDefinition, overrides map[string]any) *models.WorkflowResult {
	r.def = def
	r.overrides = overrides
	return &models.WorkflowResult{WorkflowName: def.Name, Status: models.WorkflowStatusCompleted}
}

func TestExecute(t *testing.T) {
	runner := &fakeRunner{}
	env := newTestStore(t, nil, WithRunner(runner))

	d := def("release", "")
	d.Variables = map[string]any{"env": "staging"}
	if err := env.store.Create(d, LevelProject, false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := env.store.Execute(context.Background(), "release", map[string]any{"env": "prod"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != models.WorkflowStatusCompleted || runner.def.Name != "release" {
		t.Errorf("result = %+v", res)
	}
	if runner.overrides["env"] != "prod" || runner.def.Variables["env"] != "staging" {
		t.Errorf("runner got def vars %v overrides %v", runner.def.Variables, runner.overrides)
	}

	if _, err := env.store.Execute(context.Background(), "missing", nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Execute missing error = %v, want ErrNotFound", err)
	}
}

func TestWatchInvalidatesCache(t *testing.T) {
	env := newTestStore(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := env.store.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if _, err := env.store.List(Filter{}); err != nil {
		t.Fatalf("List: %v", err)
	}

	writeRaw(t, env.project, "watched.json", `{"name":"watched","steps":[{"id":"a","agent":"x","task":"t"}]}`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := env.store.Load("watched"); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not invalidate the cache")
}

func TestReadDefinitionFile(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, "nightly.json", `{"steps":[{"id":"a","agent":"x","task":"t"}]}`)
	writeRaw(t, dir, "broken.json", `{"steps":`)

	got, err := ReadDefinitionFile(filepath.Join(dir, "nightly.json"))
	if err != nil {
		t.Fatalf("ReadDefinitionFile: %v", err)
	}
	if got.Name != "nightly" || len(got.Steps) != 1 {
		t.Errorf("got %+v, want name nightly with one step", got)
	}

	if _, err := ReadDefinitionFile(filepath.Join(dir, "broken.json")); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("malformed file error = %v, want ErrInvalidConfig", err)
	}
	if _, err := ReadDefinitionFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

// parkingClock blocks the first Now call after arm until release is closed.
type parkingClock struct {
	base    *fakeClock
	mu      sync.Mutex
	armed   bool
	parked  chan struct{}
	release chan struct{}
}

func (c *parkingClock) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = true
	c.parked = make(chan struct{})
	c.release = make(chan struct{})
}

func (c *parkingClock) Now() time.Time {
	c.mu.Lock()
	armed := c.armed
	c.armed = false
	c.mu.Unlock()
	if armed {
		close(c.parked)
		<-c.release
	}
	return c.base.Now()
}

func TestScanOvertakenByCreateIsDiscarded(t *testing.T) {
	clock := &parkingClock{base: newFakeClock()}
	env := newTestStore(t, nil, WithClock(clock.Now))

	// The clock is read when a finished scan is stored, so arming it parks
	// a Load between its scan and the cache update.
	clock.arm()
	done := make(chan error, 1)
	go func() {
		_, err := env.store.Load("late")
		done <- err
	}()

	select {
	case <-clock.parked:
	case <-time.After(5 * time.Second):
		t.Fatal("scan never reached the cache")
	}

	if err := env.store.Create(def("late", "new"), LevelProject, false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	close(clock.release)

	if err := <-done; !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("concurrent Load error = %v, want ErrNotFound from its earlier scan", err)
	}

	got, err := env.store.Load("late")
	if err != nil {
		t.Fatalf("Load after Create: %v", err)
	}
	if got.Description != "new" {
		t.Errorf("Description = %q, want new", got.Description)
	}
}

func TestCacheGeneration(t *testing.T) {
	clock := newFakeClock()
	c := newCache(time.Minute, clock.Now)
	entries := []entry{{def: &models.WorkflowDefinition{Name: "a"}, level: LevelUser}}

	gen := c.generation()
	c.invalidate()
	if c.set(entries, gen) {
		t.Fatal("set with a stale generation should be dropped")
	}
	if _, ok := c.get(); ok {
		t.Fatal("stale scan must not populate the cache")
	}

	if !c.set(entries, c.generation()) {
		t.Fatal("set with the current generation should be stored")
	}
	if got, ok := c.get(); !ok || len(got) != 1 {
		t.Errorf("get() = %v, %v; want the stored entries", got, ok)
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ning0612/NuUpdater/internal/daemon"
	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/settings"
	"github.com/Ning0612/NuUpdater/internal/state"
	"github.com/Ning0612/NuUpdater/internal/testutil"
)

type cliFixture struct {
	dir        string
	configPath string
	output     string
	store      *settings.Store
	server     *testutil.TLEServer
}

// newCLIFixture writes a config file pointing every path into a temp dir.
// With names given, the catalog is saved with one server route per name.
func newCLIFixture(t *testing.T, routes map[string]testutil.Response, names ...string) *cliFixture {
	t.Helper()

	dir := t.TempDir()
	f := &cliFixture{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		output:     filepath.Join(dir, "nu.txt"),
		server:     testutil.NewTLEServer(t, routes),
	}

	yaml := "settings:\n  path: " + filepath.ToSlash(filepath.Join(dir, "settings.json")) + "\n" +
		"state:\n  dir: " + filepath.ToSlash(filepath.Join(dir, "state")) + "\n" +
		"schedule:\n  tick: 10ms\n" +
		"fetch:\n  timeout: 500ms\n"
	if err := os.WriteFile(f.configPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	f.store = settings.NewStore(filepath.Join(dir, "settings.json"), nil)

	if len(names) > 0 {
		st := settings.Defaults()
		st.OutputFilename = f.output
		st.Satellites = nil
		for _, n := range names {
			st.Satellites = append(st.Satellites, domain.Satellite{Name: n, URL: f.server.URLFor("/" + n)})
		}
		if err := f.store.Save(st); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := os.WriteFile(f.output, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	return f
}

func (f *cliFixture) execute(t *testing.T, args ...string) (string, string, error) {
	return f.executeContext(t, context.Background(), args...)
}

func (f *cliFixture) executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--config", f.configPath, "--color", "never"}, args...))

	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func (f *cliFixture) settings(t *testing.T) *settings.Settings {
	t.Helper()
	st, err := f.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return st
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	SetBuildInfo("abc1234", "2026-10-01T00:00:00Z")
	f := newCLIFixture(t, nil)

	out, _, err := f.execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, field := range []string{"nuupdater version 1.2.3", "commit:     abc1234", "go version:", "platform:"} {
		if !strings.Contains(out, field) {
			t.Errorf("version output missing %q. Got:\n%s", field, out)
		}
	}

	out, _, err = f.execute(t, "version", "--short")
	if err != nil {
		t.Fatalf("version --short failed: %v", err)
	}
	if strings.TrimSpace(out) != "1.2.3" {
		t.Errorf("version --short = %q", out)
	}

	out, _, err = f.execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if info["version"] != "1.2.3" || info["commit"] != "abc1234" {
		t.Errorf("version --json = %v", info)
	}
}

func TestVersion_IgnoresBrokenConfig(t *testing.T) {
	f := newCLIFixture(t, nil)
	if err := os.WriteFile(f.configPath, []byte("fetch: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.execute(t, "version", "--short"); err != nil {
		t.Errorf("version must not need a config: %v", err)
	}
	if _, _, err := f.execute(t, "status"); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("status with a broken config: error = %v, want ErrConfigInvalid", err)
	}
}

func TestInvalidColorFlag(t *testing.T) {
	f := newCLIFixture(t, nil)
	if _, _, err := f.execute(t, "--color", "rainbow", "sat", "list"); err == nil {
		t.Error("expected error for invalid --color")
	}
}

func TestSatList_DefaultCatalog(t *testing.T) {
	f := newCLIFixture(t, nil)

	out, _, err := f.execute(t, "sat", "list")
	if err != nil {
		t.Fatalf("sat list failed: %v", err)
	}
	for _, sat := range domain.DefaultSatellites() {
		if !strings.Contains(out, sat.Name) {
			t.Errorf("sat list missing %q:\n%s", sat.Name, out)
		}
	}
}

func TestSatAddUpdateRemove(t *testing.T) {
	f := newCLIFixture(t, nil, "A", "B")

	if _, _, err := f.execute(t, "sat", "add", " C ", " http://example.com/c "); err != nil {
		t.Fatalf("sat add failed: %v", err)
	}
	st := f.settings(t)
	if len(st.Satellites) != 3 || st.Satellites[2] != (domain.Satellite{Name: "C", URL: "http://example.com/c"}) {
		t.Fatalf("after add: %+v", st.Satellites)
	}

	if _, _, err := f.execute(t, "sat", "add", "A", "http://dup"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("duplicate add: error = %v, want ErrValidation", err)
	}

	if _, _, err := f.execute(t, "select", "B"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	out, _, err := f.execute(t, "sat", "update", "2", "B2", "http://example.com/b2")
	if err != nil {
		t.Fatalf("sat update failed: %v", err)
	}
	if !strings.Contains(out, "Updated #2 to B2") {
		t.Errorf("sat update output = %q", out)
	}
	st = f.settings(t)
	if st.Satellites[1].Name != "B2" {
		t.Errorf("after update: %+v", st.Satellites)
	}
	if len(st.SelectedSats) != 1 || st.SelectedSats[0] != "B2" {
		t.Errorf("selection must follow the rename, got %v", st.SelectedSats)
	}

	out, _, err = f.execute(t, "sat", "rm", "1")
	if err != nil {
		t.Fatalf("sat remove failed: %v", err)
	}
	if !strings.Contains(out, "Removed A") {
		t.Errorf("sat remove output = %q", out)
	}
	st = f.settings(t)
	if len(st.Satellites) != 2 || st.Satellites[0].Name != "B2" {
		t.Errorf("after remove: %+v", st.Satellites)
	}
}

func TestSat_InvalidIndex(t *testing.T) {
	f := newCLIFixture(t, nil, "A")

	for _, index := range []string{"0", "-1", "x"} {
		if _, _, err := f.execute(t, "sat", "remove", index); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("sat remove %s: error = %v, want ErrValidation", index, err)
		}
	}
	if _, _, err := f.execute(t, "sat", "remove", "5"); err == nil {
		t.Error("expected error for index out of range")
	}
	if _, _, err := f.execute(t, "sat", "update", "1", "", "http://x"); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestSelect(t *testing.T) {
	f := newCLIFixture(t, nil, "A", "B", "C")

	out, _, err := f.execute(t, "select", "C", "A")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if !strings.Contains(out, "Selected") {
		t.Errorf("select output = %q", out)
	}
	sel := f.settings(t).SelectedSats
	if len(sel) != 2 {
		t.Fatalf("SelectedSats = %v", sel)
	}

	_, stderr, err := f.execute(t, "select", "--none")
	if err != nil {
		t.Fatalf("select --none failed: %v", err)
	}
	if !strings.Contains(stderr, "No satellites selected") {
		t.Errorf("select --none stderr = %q", stderr)
	}
	st := f.settings(t)
	cat, _ := st.Catalog()
	if got := st.Selection(cat); !got.IsEmpty() {
		t.Errorf("select --none must store an empty selection, got %v", got)
	}

	if _, _, err := f.execute(t, "select", "--all"); err != nil {
		t.Fatalf("select --all failed: %v", err)
	}
	st = f.settings(t)
	cat, _ = st.Catalog()
	if got := st.Selection(cat); len(got) != 3 {
		t.Errorf("select --all selection = %v", got)
	}

	if _, _, err := f.execute(t, "select", "Z"); !errors.Is(err, domain.ErrSatelliteNotFound) {
		t.Errorf("select unknown: error = %v, want ErrSatelliteNotFound", err)
	}
	if _, _, err := f.execute(t, "select"); err == nil {
		t.Error("select without arguments must fail")
	}
	if _, _, err := f.execute(t, "select", "--all", "A"); err == nil {
		t.Error("select with --all and names must fail")
	}
}

func TestInterval(t *testing.T) {
	f := newCLIFixture(t, nil)

	out, _, err := f.execute(t, "interval")
	if err != nil {
		t.Fatalf("interval failed: %v", err)
	}
	if strings.TrimSpace(out) != domain.DefaultInterval().String() {
		t.Errorf("interval = %q, want %q", out, domain.DefaultInterval())
	}

	if _, _, err := f.execute(t, "interval", "1,5", "h"); err != nil {
		t.Fatalf("interval set failed: %v", err)
	}
	got := f.settings(t).Interval()
	if got.Value != 1.5 || got.Unit != domain.UnitHours {
		t.Errorf("stored interval = %v", got)
	}

	if _, _, err := f.execute(t, "interval", "6"); err != nil {
		t.Fatalf("interval without unit failed: %v", err)
	}
	if got := f.settings(t).Interval(); got.Unit != domain.UnitHours || got.Value != 6 {
		t.Errorf("unit must default to hours, got %v", got)
	}

	for _, args := range [][]string{{"0", "minutes"}, {"abc", "minutes"}, {"5", "fortnights"}} {
		if _, _, err := f.execute(t, append([]string{"interval"}, args...)...); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("interval %v: error = %v, want ErrValidation", args, err)
		}
	}
}

func TestOutput(t *testing.T) {
	f := newCLIFixture(t, nil, "A")

	out, _, err := f.execute(t, "output")
	if err != nil {
		t.Fatalf("output failed: %v", err)
	}
	if strings.TrimSpace(out) != f.output {
		t.Errorf("output = %q, want %q", out, f.output)
	}

	target := filepath.Join(f.dir, "sub", "tle.txt")
	if _, _, err := f.execute(t, "output", target); !errors.Is(err, domain.ErrOutputMissing) {
		t.Errorf("missing target: error = %v, want ErrOutputMissing", err)
	}
	if _, _, err := f.execute(t, "output", "--create", target); err != nil {
		t.Fatalf("output --create failed: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("output --create did not create %s: %v", target, err)
	}
	if got := f.settings(t).OutputFilename; got != target {
		t.Errorf("OutputFilename = %s, want %s", got, target)
	}
}

func TestFetchLocal(t *testing.T) {
	f := newCLIFixture(t, map[string]testutil.Response{
		"/A": {Body: "a1\r\n a2 \n"},
		"/B": {Status: 403},
	}, "A", "B")

	out, stderr, err := f.execute(t, "fetch")
	if err != nil {
		t.Fatalf("fetch failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(out, "No running daemon") || !strings.Contains(out, "Data written to file "+f.output) {
		t.Errorf("fetch output = %q", out)
	}
	if !strings.Contains(stderr, "B") {
		t.Errorf("failed satellite must be reported on stderr, got %q", stderr)
	}

	content, err := os.ReadFile(f.output)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "a1\na2\n" {
		t.Errorf("output = %q, want %q", content, "a1\na2\n")
	}
}

func TestFetchLocal_ReplacesPreviousOutput(t *testing.T) {
	f := newCLIFixture(t, map[string]testutil.Response{"/A": {Body: "old\n"}}, "A")

	if _, _, err := f.execute(t, "fetch", "--local"); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	f.server.SetRoute("/A", testutil.Response{Body: "new\n"})
	if _, _, err := f.execute(t, "fetch", "--local"); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	content, _ := os.ReadFile(f.output)
	if string(content) != "new\n" {
		t.Errorf("output = %q, want %q", content, "new\n")
	}
	if hits := f.server.Hits("/A"); hits != 2 {
		t.Errorf("server hits = %d, want 2", hits)
	}
}

func TestFetchLocal_NoData(t *testing.T) {
	f := newCLIFixture(t, map[string]testutil.Response{
		"/A": {Body: "  \n"},
	}, "A")
	if err := os.WriteFile(f.output, []byte("previous\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := f.execute(t, "fetch", "--local")
	if !errors.Is(err, errNoData) {
		t.Fatalf("fetch error = %v, want errNoData", err)
	}
	content, _ := os.ReadFile(f.output)
	if string(content) != "previous\n" {
		t.Errorf("output must be untouched, got %q", content)
	}
}

func TestFetch_OutputMissing(t *testing.T) {
	f := newCLIFixture(t, map[string]testutil.Response{"/A": {Body: "a\n"}}, "A")
	if err := os.Remove(f.output); err != nil {
		t.Fatal(err)
	}
	testutil.Chdir(t, f.dir)

	if _, _, err := f.execute(t, "fetch", "--local"); !errors.Is(err, domain.ErrOutputMissing) {
		t.Fatalf("fetch error = %v, want ErrOutputMissing", err)
	}
	if _, _, err := f.execute(t, "fetch", "--local", "--create-output"); err != nil {
		t.Fatalf("fetch --create-output failed: %v", err)
	}
	content, _ := os.ReadFile(filepath.Join(f.dir, "nu.txt"))
	if string(content) != "a\n" {
		t.Errorf("output = %q", content)
	}
}

func TestHistoryAndStatus(t *testing.T) {
	f := newCLIFixture(t, map[string]testutil.Response{
		"/A": {Body: "a\n"},
		"/B": {Status: 500},
	}, "A", "B")

	out, _, err := f.execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No cycles recorded") {
		t.Errorf("empty history = %q", out)
	}

	if _, _, err := f.execute(t, "fetch", "--local"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	out, _, err = f.execute(t, "history", "-n", "5")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, want := range []string{"manual", "[partial]", "1/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q:\n%s", want, out)
		}
	}

	mgr, err := state.NewManager(filepath.Join(f.dir, "state"))
	if err != nil {
		t.Fatal(err)
	}
	records, err := mgr.GetHistory(1)
	mgr.Close()
	if err != nil || len(records) != 1 {
		t.Fatalf("GetHistory() = %v, %v", records, err)
	}

	out, _, err = f.execute(t, "history", "--cycle", records[0].CycleID)
	if err != nil {
		t.Fatalf("history --cycle failed: %v", err)
	}
	for _, want := range []string{"A", "B", "500", f.output} {
		if !strings.Contains(out, want) {
			t.Errorf("cycle details missing %q:\n%s", want, out)
		}
	}
	if _, _, err := f.execute(t, "history", "--cycle", "nope"); err == nil {
		t.Error("expected error for unknown cycle")
	}

	out, _, err = f.execute(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"[stopped]", "10 minutes", f.output, "2 of 2 satellites", "[partial]"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestStop_NoDaemon(t *testing.T) {
	f := newCLIFixture(t, nil)
	if _, _, err := f.execute(t, "stop"); !errors.Is(err, daemon.ErrNoDaemon) {
		t.Errorf("stop error = %v, want ErrNoDaemon", err)
	}
}

func TestRun_UpdatesUntilCancelled(t *testing.T) {
	f := newCLIFixture(t, map[string]testutil.Response{"/A": {Body: "a\n"}}, "A")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(time.Second, cancel)

	out, stderr, err := f.executeContext(t, ctx, "run", "--no-watch")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, stderr)
	}
	for _, want := range []string{"Updating " + f.output, "Automatic TLE update.", "Shut down."} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}

	content, _ := os.ReadFile(f.output)
	if string(content) != "a\n" {
		t.Errorf("output = %q, want %q", content, "a\n")
	}
	if _, err := os.Stat(filepath.Join(f.dir, "state", "daemon.pid")); !os.IsNotExist(err) {
		t.Errorf("PID file must be removed on shutdown: %v", err)
	}
}

func TestRun_RefusesSecondDaemon(t *testing.T) {
	f := newCLIFixture(t, nil, "A")

	pid := daemon.NewPIDFile(filepath.Join(f.dir, "state", "daemon.pid"))
	if err := pid.Write(); err != nil {
		t.Fatal(err)
	}
	defer pid.Remove()

	if _, _, err := f.execute(t, "run"); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("run error = %v, want ErrAlreadyRunning", err)
	}
}

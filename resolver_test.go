package tiger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewResolver_Groups(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSimpleGroup(t, dir, "w64_ui_09be", 0x09be, 2)
	writeSimpleGroup(t, dir, "w64_audio_0100", 0x0100, 3)
	writeSimpleGroup(t, dir, "w64_sandbox_0001", 0x0001, 1)

	r := newTestResolver(t, dir, nil)

	groups := r.Groups()
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	wantNames := []string{"w64_audio_0100", "w64_sandbox_0001", "w64_ui_09be"}
	for i, g := range groups {
		if g.Name() != wantNames[i] {
			t.Fatalf("groups[%d] = %q, want %q", i, g.Name(), wantNames[i])
		}
	}

	master, err := r.Current(0x09be)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if master.Name() != "w64_ui_09be_1.pkg" {
		t.Fatalf("Current(0x09be) = %s, want w64_ui_09be_1.pkg", master)
	}

	old, err := r.AtPatch(0x09be, 0)
	if err != nil {
		t.Fatalf("AtPatch: %v", err)
	}
	if old.Name() != "w64_ui_09be_0.pkg" {
		t.Fatalf("AtPatch(0x09be, 0) = %s, want w64_ui_09be_0.pkg", old)
	}

	if _, err := r.AtPatch(0x09be, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AtPatch past end err = %v, want ErrNotFound", err)
	}
	if _, err := r.Current(0x0777); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Current unknown err = %v, want ErrNotFound", err)
	}

	group, err := r.GroupByName("w64_audio_0100_2.pkg")
	if err != nil {
		t.Fatalf("GroupByName: %v", err)
	}
	if group.Len() != 3 || group.ID() != 0x0100 || group.Master().NamePatch() != 2 {
		t.Fatalf("group = %s len=%d id=0x%04x", group.Name(), group.Len(), group.ID())
	}
	if _, err := r.GroupByName("w64_missing_0002"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GroupByName missing err = %v, want ErrNotFound", err)
	}
}

func TestResolver_GroupByNameNumericID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSimpleGroup(t, dir, "w64_sr_gear_0426", 0x0426, 2)

	r := newTestResolver(t, dir, nil)
	for _, name := range []string{"w64_sr_gear_0426", "w64_sr_gear_0426_1.pkg", "w64_sr_gear_0426_0"} {
		group, err := r.GroupByName(name)
		if err != nil {
			t.Fatalf("GroupByName(%q): %v", name, err)
		}
		if group.Name() != "w64_sr_gear_0426" || group.ID() != 0x0426 || group.Len() != 2 {
			t.Fatalf("GroupByName(%q) = %s id=0x%04x len=%d", name, group.Name(), group.ID(), group.Len())
		}
	}

	for master := range r.Stream("") {
		if _, err := r.GroupByName(master.BaseName()); err != nil {
			t.Fatalf("GroupByName(%q) of streamed master: %v", master.BaseName(), err)
		}
	}

	if _, err := r.GroupByName("w64_sr_gear"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GroupByName truncated err = %v, want ErrNotFound", err)
	}
}

func TestNewResolver_PatchOrderIsNumeric(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSimpleGroup(t, dir, "w64_big_0002", 0x0002, 11)

	r := newTestResolver(t, dir, nil)
	master, err := r.Current(0x0002)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if master.NamePatch() != 10 {
		t.Fatalf("master patch = %d, want 10", master.NamePatch())
	}

	files := r.Groups()[0].Files()
	for i, f := range files {
		if f.NamePatch() != i {
			t.Fatalf("files[%d] patch = %d", i, f.NamePatch())
		}
	}
}

func TestNewResolver_NoArchives(t *testing.T) {
	t.Parallel()

	if _, err := NewResolver(filepath.Join(t.TempDir(), "missing"), ResolverOptions{}); !errors.Is(err, ErrNoArchives) {
		t.Fatalf("missing dir err = %v, want ErrNoArchives", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(dir, ResolverOptions{}); !errors.Is(err, ErrNoArchives) {
		t.Fatalf("empty dir err = %v, want ErrNoArchives", err)
	}
}

func TestNewResolver_SkipsUnpatchedAndLogs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSimpleGroup(t, dir, "w64_ui_09be", 0x09be, 1)
	if err := os.WriteFile(filepath.Join(dir, "stray.pkg"), []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub_0.pkg"), 0o750); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	r, err := NewResolver(dir, ResolverOptions{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if len(r.Groups()) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(r.Groups()))
	}
	if !strings.Contains(logs.String(), "stray.pkg") {
		t.Fatalf("expected warning about stray.pkg, logs: %s", logs.String())
	}
}

func TestNewResolver_IDCollision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSimpleGroup(t, dir, "w64_a_0005", 0x0005, 1)
	writeSimpleGroup(t, dir, "w64_b_0005", 0x0005, 2)

	var logs bytes.Buffer
	r, err := NewResolver(dir, ResolverOptions{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	group, err := r.GroupByID(0x0005)
	if err != nil {
		t.Fatalf("GroupByID: %v", err)
	}
	if group.Name() != "w64_a_0005" {
		t.Fatalf("GroupByID(0x0005) = %s, want first group w64_a_0005", group.Name())
	}
	if !strings.Contains(logs.String(), "collision") {
		t.Fatalf("expected collision warning, logs: %s", logs.String())
	}

	other, err := r.GroupByName("w64_b_0005")
	if err != nil || other.Len() != 2 {
		t.Fatalf("colliding group must stay reachable by name: %v", err)
	}
}

func TestNewResolver_Rules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSimpleGroup(t, dir, "w64_ui_09be", 0x09be, 1)
	writeSimpleGroup(t, dir, "w64_audio_0100", 0x0100, 1)

	r, err := NewResolver(dir, ResolverOptions{Rules: IncludeRules("*_ui_*")})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if len(r.Groups()) != 1 || r.Groups()[0].Name() != "w64_ui_09be" {
		t.Fatalf("groups = %v", r.Groups())
	}

	if _, err := NewResolver(dir, ResolverOptions{Rules: IncludeRules("nothing_*")}); !errors.Is(err, ErrNoArchives) {
		t.Fatalf("all excluded err = %v, want ErrNoArchives", err)
	}
}

func TestNewResolver_Extension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := newPkgWriter(0x0042, 0)
	w.addEntry(packEntry(0, EntryTypeRawData, 0, 0, 0, 0))
	w.write(t, dir, "w64_alt_0042_0.bin")

	if _, err := NewResolver(dir, ResolverOptions{}); !errors.Is(err, ErrNoArchives) {
		t.Fatalf("default extension err = %v, want ErrNoArchives", err)
	}

	r, err := NewResolver(dir, ResolverOptions{Extension: ".BIN"})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := r.Current(0x0042); err != nil {
		t.Fatalf("Current: %v", err)
	}
}

func TestResolver_Stream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSimpleGroup(t, dir, "w64_ui_09be", 0x09be, 2)
	writeSimpleGroup(t, dir, "w64_ui_0a00", 0x0a00, 1)
	writeSimpleGroup(t, dir, "w64_audio_0100", 0x0100, 1)

	r := newTestResolver(t, dir, nil)

	var names []string
	for file := range r.Stream("_ui_") {
		names = append(names, file.Name())
	}
	want := []string{"w64_ui_09be_1.pkg", "w64_ui_0a00_0.pkg"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("Stream(_ui_) = %v, want %v", names, want)
	}

	count := 0
	for range r.Stream("") {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("early break yielded %d files", count)
	}

	if got := len(r.Masters("")); got != 3 {
		t.Fatalf("len(Masters) = %d, want 3", got)
	}
}

func TestNewResolver_BadFirstHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "w64_bad_0001_0.pkg"), make([]byte, headerSize), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewResolver(dir, ResolverOptions{}); !errors.Is(err, ErrFormat) {
		t.Fatalf("zeroed header err = %v, want ErrFormat", err)
	}
}

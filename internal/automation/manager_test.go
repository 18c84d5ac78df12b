//go:build !no_automation

package automation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scripts")
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManagerListEmpty(t *testing.T) {
	m := newTestManager(t)
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Errorf("list count = %d, want 0", len(scripts))
	}
}

func TestManagerListSkipsNonLua(t *testing.T) {
	m := newTestManager(t)

	files := map[string]string{
		"watch.lua": `-- {"name":"Watch","enabled":true}` + "\n" + `lock.log("hi")`,
		"notes.txt": "not a script",
		"other.lua": `lock.log("plain")`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(m.dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 2 {
		t.Fatalf("list count = %d, want 2", len(scripts))
	}
}

func TestManagerGet(t *testing.T) {
	m := newTestManager(t)

	content := `-- {"name":"Night watch","description":"warn on late unlocks","enabled":true}

lock.on("lock_event", {}, function(event)
    lock.log("event")
end)
`
	if err := os.WriteFile(filepath.Join(m.dir, "night.lua"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := m.Get("night")
	if err != nil {
		t.Fatal(err)
	}
	if s.ID != "night" {
		t.Errorf("id = %q, want night", s.ID)
	}
	if s.Meta.Name != "Night watch" {
		t.Errorf("name = %q", s.Meta.Name)
	}
	if s.Meta.Description != "warn on late unlocks" {
		t.Errorf("description = %q", s.Meta.Description)
	}
	if !s.Meta.Enabled {
		t.Error("enabled = false, want true")
	}
	if strings.Contains(s.LuaCode, "-- {") {
		t.Errorf("metadata header not stripped from code: %q", s.LuaCode)
	}
	if !strings.Contains(s.LuaCode, `lock.on("lock_event"`) {
		t.Errorf("lua_code missing body: %q", s.LuaCode)
	}
}

func TestManagerGetNotFound(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Get("nonexistent"); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestManagerGetRejectsBadIDs(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"", ".", "..", "../evil", "a/b", `a\b`} {
		if _, err := m.Get(id); err == nil {
			t.Errorf("Get(%q) should fail", id)
		}
	}
}

func TestParseFileWithoutHeader(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.dir, "plain.lua")
	if err := os.WriteFile(path, []byte(`lock.log("no header")`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := m.parseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Meta.Name != "" || s.Meta.Enabled {
		t.Errorf("meta = %+v, want zero value", s.Meta)
	}
	if s.LuaCode != `lock.log("no header")` {
		t.Errorf("lua_code = %q", s.LuaCode)
	}
}

func TestValidScriptID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"watch", true},
		{"night_watch-2", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../evil", false},
		{"a/b", false},
		{`a\b`, false},
	}
	for _, tt := range tests {
		if got := validScriptID(tt.id); got != tt.want {
			t.Errorf("validScriptID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

package model

import "testing"

func TestValues_GetSet(t *testing.T) {
	v := Values{}
	v.Set("settings.basic.auth", true)
	v.Set("settings.basic.username", "admin")
	v.Set("port", 8080)

	if !v.Bool("settings.basic.auth") {
		t.Error("settings.basic.auth = false, want true")
	}
	if got := v.String("settings.basic.username"); got != "admin" {
		t.Errorf("username = %q, want admin", got)
	}
	if got := v.Number("port"); got != 8080 {
		t.Errorf("port = %v, want 8080", got)
	}
	if raw, _ := v.Get("port"); raw != float64(8080) {
		t.Errorf("port stored as %T, want float64", raw)
	}
	if _, ok := v.Get("settings.missing.deep"); ok {
		t.Error("Get(missing) ok = true")
	}
}

func TestValues_SetReplacesScalarOnPath(t *testing.T) {
	v := Values{"auth": "legacy"}
	v.Set("auth.account", "bot")
	if got := v.String("auth.account"); got != "bot" {
		t.Errorf("auth.account = %q, want bot", got)
	}
}

func TestValues_Delete(t *testing.T) {
	v := NewValues(map[string]any{"settings": map[string]any{"apikey": "x", "rules": map[string]any{"enabled": true}}})
	v.Delete("settings.apikey")
	v.Delete("settings.nothing.here")
	if _, ok := v.Get("settings.apikey"); ok {
		t.Error("settings.apikey still present")
	}
	if !v.Bool("settings.rules.enabled") {
		t.Error("sibling removed by Delete")
	}
}

func TestValues_CloneIsDeep(t *testing.T) {
	orig := NewValues(map[string]any{"channels": []any{map[string]any{"name": "#announce"}}})
	c := orig.Clone()
	c.Set("name", "changed")
	ch := c["channels"].([]any)[0].(Values)
	ch["name"] = "#other"

	if _, ok := orig.Get("name"); ok {
		t.Error("clone write leaked into original")
	}
	if got := orig["channels"].([]any)[0].(Values)["name"]; got != "#announce" {
		t.Errorf("nested clone write leaked: %v", got)
	}
}

func TestValues_EqualNormalisesNumbers(t *testing.T) {
	a := NewValues(map[string]any{"port": 10000, "tags": []string{"a"}})
	b := NewValues(map[string]any{"port": 10000.0, "tags": []any{"a"}})
	if !a.Equal(b) {
		t.Error("Equal = false for numerically equal values")
	}
	b.Set("port", 10001)
	if a.Equal(b) {
		t.Error("Equal = true for differing port")
	}
}

type namedType string

func TestValuesOf(t *testing.T) {
	src := struct {
		Name string    `json:"name"`
		Type namedType `json:"type"`
		Port int       `json:"port"`
	}{Name: "qb", Type: "QBITTORRENT", Port: 10000}

	v, err := ValuesOf(src)
	if err != nil {
		t.Fatalf("ValuesOf: %v", err)
	}
	if v.String("type") != "QBITTORRENT" || v.Number("port") != 10000 {
		t.Errorf("ValuesOf = %v", v)
	}

	var back struct {
		Port int `json:"port"`
	}
	if err := v.Decode(&back); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Port != 10000 {
		t.Errorf("Decode port = %d", back.Port)
	}
}

func TestFormSession_Dirty(t *testing.T) {
	s := &FormSession{
		InitialValues: NewValues(map[string]any{"host": "", "port": 10000}),
		CurrentValues: NewValues(map[string]any{"host": "", "port": 10000}),
	}
	if s.Dirty() {
		t.Fatal("fresh session reported dirty")
	}
	s.CurrentValues.Set("host", "localhost")
	if !s.Dirty() {
		t.Error("edited session not dirty")
	}
	s.CurrentValues.Set("host", "")
	if s.Dirty() {
		t.Error("reverted session still dirty")
	}
}

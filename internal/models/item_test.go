package models

import "testing"

func TestImageMetadata_Field(t *testing.T) {
	m := &ImageMetadata{
		Filename: "art_001.jpg",
		Artist:   "Studio Kiko",
		Extra:    map[string]string{"source": "instagram"},
	}
	if v, ok := m.Field("artist"); !ok || v != "Studio Kiko" {
		t.Errorf("artist = %q, %v", v, ok)
	}
	if v, ok := m.Field("source"); !ok || v != "instagram" {
		t.Errorf("extra source = %q, %v", v, ok)
	}
	if _, ok := m.Field("style"); ok {
		t.Error("empty known field should report not ok")
	}
	if _, ok := m.Field("missing"); ok {
		t.Error("unknown field should report not ok")
	}
}

func TestImageMetadata_Matches(t *testing.T) {
	m := &ImageMetadata{Filename: "a.jpg", Style: "french", Extra: map[string]string{"city": "Dallas"}}
	if !m.Matches(nil) {
		t.Error("nil filter should match")
	}
	if !m.Matches(map[string]string{"style": "french", "city": "Dallas"}) {
		t.Error("matching filter should match")
	}
	if m.Matches(map[string]string{"style": "ombre"}) {
		t.Error("mismatching filter should not match")
	}
	if m.Matches(map[string]string{"artist": "anyone"}) {
		t.Error("unset field should not match")
	}
}

func TestImageMetadata_Clone(t *testing.T) {
	m := &ImageMetadata{Filename: "a.jpg", Extra: map[string]string{"k": "v"}}
	c := m.Clone()
	c.Extra["k"] = "changed"
	c.Filename = "b.jpg"
	if m.Extra["k"] != "v" || m.Filename != "a.jpg" {
		t.Error("Clone must not share state with the original")
	}
	var nilMeta *ImageMetadata
	if nilMeta.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

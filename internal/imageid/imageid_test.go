package imageid

import "testing"

func TestKey_Stable(t *testing.T) {
	a := Key("/catalog/drops/spring/gel-01.jpg")
	b := Key("/catalog/drops/spring/../spring/gel-01.jpg")
	if a != b {
		t.Errorf("same file should yield same key: %q vs %q", a, b)
	}
	if a != "gel-01.jpg" {
		t.Errorf("key = %q, want base filename", a)
	}
}

func TestKey_DifferentFilesDiffer(t *testing.T) {
	if Key("/drops/a.jpg") == Key("/drops/b.jpg") {
		t.Error("different filenames should yield different keys")
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("image-bytes"))
	b := ContentHash([]byte("image-bytes"))
	c := ContentHash([]byte("other-bytes"))
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == c {
		t.Error("different content should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hex sha256 length = %d, want 64", len(a))
	}
}

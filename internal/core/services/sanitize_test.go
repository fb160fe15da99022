package services

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "Hello World"},
		{"AC/DC - Back in Black (Official Video)", "ACDC - Back in Black Official Video"},
		{"Şarkı_adı 2024  ", "Şarkı_adı 2024"},
		{"???", ""},
		{"a/../../etc/passwd", "aetcpasswd"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilenameIdempotent(t *testing.T) {
	for _, in := range []string{"Hello, World!", "  lead and trail  ", "日本語 タイトル!", "x|y:z"} {
		once := SanitizeFilename(in)
		if twice := SanitizeFilename(once); twice != once {
			t.Errorf("SanitizeFilename not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		".mp3": "audio/mpeg",
		".M4A": "audio/mp4",
		".mp4": "video/mp4",
		".xyz": "application/octet-stream",
		"":     "application/octet-stream",
	}
	for ext, want := range tests {
		if got := ContentTypeFor(ext); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", ext, got, want)
		}
	}
}

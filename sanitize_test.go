package epub

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "chapter-1", "chapter-1"},
		{"uppercase", "MyFile", "myfile"},
		{"spaces become hyphens", "my file name", "my-file-name"},
		{"accented letters degrade", "Résumé", "resume"},
		{"punctuation stripped", "file!!@@name", "file-name"},
		{"leading and trailing dots trimmed", "...name...", "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeFilename(tt.in)
			if got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitExt(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantBase string
		wantExt  string
	}{
		{"simple", "photo.JPG", "photo", ".jpg"},
		{"no extension", "README", "README", ""},
		{"leading dot is not an extension", ".gitignore", ".gitignore", ""},
		{"multiple dots", "archive.tar.gz", "archive.tar", ".gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, ext := splitExt(tt.in)
			if base != tt.wantBase || ext != tt.wantExt {
				t.Errorf("splitExt(%q) = (%q, %q), want (%q, %q)", tt.in, base, ext, tt.wantBase, tt.wantExt)
			}
		})
	}
}

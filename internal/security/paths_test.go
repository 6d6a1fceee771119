package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmp := t.TempDir()
	out := filepath.Join(tmp, "out")
	elsewhere := filepath.Join(tmp, "elsewhere")
	for _, d := range []string{out, elsewhere} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	link := filepath.Join(out, "link")
	if err := os.Symlink(elsewhere, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"report file", filepath.Join(out, "sectors.geojson"), false},
		{"new nested dir", filepath.Join(out, "run1", "plots", "map.png"), false},
		{"dir itself", out, false},
		{"dot dot", filepath.Join(out, "..", "sectors.geojson"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"through symlink", filepath.Join(link, "map.png"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && strings.Contains(tt.name, "outside") && !errors.Is(err, ErrPathEscape) {
				t.Errorf("error %v does not wrap ErrPathEscape", err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if err := ValidatePathWithinDirectory(filepath.Join(missing, "a"), missing); err == nil {
		t.Error("expected error for a directory that does not exist")
	}
}

func TestValidateOutputDir(t *testing.T) {
	if err := ValidateOutputDir(filepath.Join(os.TempDir(), "sectors-test-out")); err != nil {
		t.Errorf("temp dir rejected: %v", err)
	}
	if err := ValidateOutputDir("reports"); err != nil {
		t.Errorf("relative dir under cwd rejected: %v", err)
	}
	if err := ValidateOutputDir("/proc/sectors"); !errors.Is(err, ErrPathEscape) {
		t.Errorf("ValidateOutputDir(/proc/sectors) = %v, want ErrPathEscape", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"district 4", "district_4"},
		{"../../etc/passwd", "etc_passwd"},
		{"a//b\\c", "a_b_c"},
		{"run-2024.03_final", "run-2024.03_final"},
		{"  ", "unknown"},
		{"", "unknown"},
		{"...", "unknown"},
		{"Sektör Ä", "Sekt_r"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SanitizeFilename(strings.Repeat("x", 500)); len(got) != maxFilenameLen {
		t.Errorf("long name length = %d, want %d", len(got), maxFilenameLen)
	}
}

package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/clipforge/clipforge/internal/timecode"
)

const maxNameLen = 80

// SanitizeName strips control characters and replaces anything outside a
// conservative filename alphabet with an underscore.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
		case allowedNameRune(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func allowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune(" -_.,()", r)
}

// OutputFileName builds a default export name such as "Holiday_1m05s.mp4".
func OutputFileName(project string, duration float64, format Format) string {
	name := SanitizeName(project, maxNameLen)
	if name == "" {
		name = "export"
	}
	return fmt.Sprintf("%s_%s%s", name, timecode.FormatForFilename(duration), format.Extension())
}

// ValidateOutputPath checks that path is a clean absolute file path inside an
// existing directory, with the extension of format.
func ValidateOutputPath(path string, format Format) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output_path is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("output_path cannot contain path traversal")
		}
	}
	if filepath.Clean(path) != path {
		return fmt.Errorf("output_path must be clean path")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("output_path must be absolute")
	}
	if !strings.EqualFold(filepath.Ext(path), format.Extension()) {
		return fmt.Errorf("output_path must end in %s", format.Extension())
	}

	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist")
		}
		return fmt.Errorf("invalid output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory is not a directory")
	}
	return nil
}

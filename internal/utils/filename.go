package utils

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	ordinalPrefix = regexp.MustCompile(`^\d+\.`)
	illegalChars  = regexp.MustCompile(`[\\:<>"/|?*]`)
)

// SanitizeName strips a leading ordinal ("1. ") and characters that are not
// portable in a path segment, then trims surrounding whitespace.
// Example: `1. Intro: Go/Rust?` -> `Intro GoRust`
func SanitizeName(name string) string {
	name = ordinalPrefix.ReplaceAllString(name, "")
	name = illegalChars.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// IndexedName renders "<2-digit index> - <sanitized name><ext>".
func IndexedName(index int, name, ext string) string {
	return fmt.Sprintf("%02d - %s%s", index, SanitizeName(name), ext)
}

// FilenameFromURL returns the last path element of rawURL, unescaped.
// Example: https://cdn.example.com/ex/Files.zip?e=1 -> Files.zip
func FilenameFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	base := path.Base(parsed.Path)
	if base == "." || base == "/" {
		return "", fmt.Errorf("url has no file name: %s", rawURL)
	}
	return base, nil
}

// SafeBaseName reduces name to its last path element, treating both slash
// styles as separators. It returns "" when nothing usable is left.
// Example: `../../Ex_Files.zip` -> `Ex_Files.zip`
func SafeBaseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrPathSeparator = errors.New("filename must not contain path separators")
	ErrReservedName  = errors.New("reserved filename not allowed")
	ErrLeadingHyphen = errors.New("filename cannot start with hyphen")
	ErrEmptyFilename = errors.New("filename is empty")

	windowsReservedNames = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true,
		"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

// ValidateFilename checks a single file name (no directory part) that is
// about to be joined onto a user-chosen download directory.
func ValidateFilename(name string) error {
	if name == "" {
		return ErrEmptyFilename
	}
	if strings.Contains(name, "..") {
		return ErrPathTraversal
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return ErrPathSeparator
	}
	if isReserved(name) {
		return ErrReservedName
	}
	if strings.HasPrefix(name, "-") {
		return ErrLeadingHyphen
	}
	return nil
}

// SanitizeFilename turns free text such as a project title into something
// safe to use as a file name stem. Spaces become underscores.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "",
		"<", "", ">", "", "|", "", "\x00", "",
	)
	sanitized := replacer.Replace(strings.TrimSpace(name))
	for strings.Contains(sanitized, "..") {
		sanitized = strings.ReplaceAll(sanitized, "..", ".")
	}
	sanitized = strings.TrimLeft(sanitized, ".-")
	sanitized = strings.TrimRight(sanitized, ". ")

	if isReserved(sanitized) {
		sanitized += "_"
	}
	return sanitized
}

func isReserved(name string) bool {
	stem := strings.TrimSuffix(strings.ToLower(name), filepath.Ext(name))
	return windowsReservedNames[stem]
}

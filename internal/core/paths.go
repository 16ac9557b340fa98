package core

// paths.go resolves the logical file references stored on upload records
// into absolute filesystem locations. Pure string processing, no I/O.
//
// Four addressing forms are recognized:
//
//	rel://Lindy/catalog.csv      root-relative under the configured import root
//	file:///var/data/c.csv       file URI (one-, three-, and UNC slash variants)
//	/var/data/c.csv              already absolute (POSIX, X:\..., \\server\share)
//	Lindy/catalog.csv            anything else, treated as root-relative

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

const relScheme = "rel://"

var driveLetterPattern = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// ImportRoots holds the per-OS-family import root directories.
type ImportRoots struct {
	Posix   string
	Windows string
}

// Active returns the root for the current host OS.
func (r ImportRoots) Active() string {
	return r.forGOOS(runtime.GOOS)
}

func (r ImportRoots) forGOOS(goos string) string {
	if goos == "windows" {
		return r.Windows
	}
	return r.Posix
}

// ResolveSourcePath turns a logical file reference into an absolute path,
// denying traversal outside the import root. Fails with ErrInvalidPath for
// control characters and for any path segment containing "..".
func ResolveSourcePath(ref string, roots ImportRoots) (string, error) {
	return resolveSourcePath(ref, roots.Active())
}

// resolveSourcePath is the testable core with the root pre-selected.
func resolveSourcePath(ref, root string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty reference", ErrInvalidPath)
	}
	if hasControlChars(ref) {
		return "", fmt.Errorf("%w: control character in %q", ErrInvalidPath, ref)
	}

	var resolved string
	switch {
	case strings.HasPrefix(ref, relScheme):
		rel := ref[len(relScheme):]
		if err := checkSegments(rel); err != nil {
			return "", err
		}
		resolved = filepath.Join(root, filepath.FromSlash(rel))

	case strings.HasPrefix(ref, "file:"):
		p, err := stripFileScheme(ref)
		if err != nil {
			return "", err
		}
		if err := checkSegments(p); err != nil {
			return "", err
		}
		resolved = filepath.Clean(filepath.FromSlash(p))

	case isAbsoluteRef(ref):
		if err := checkSegments(ref); err != nil {
			return "", err
		}
		resolved = filepath.Clean(filepath.FromSlash(ref))

	default:
		if err := checkSegments(ref); err != nil {
			return "", err
		}
		resolved = filepath.Join(root, filepath.FromSlash(ref))
	}

	return resolved, nil
}

// stripFileScheme unwraps the file: URI variants seen in the wild:
// file:/path (one slash), file:///path (three), file:////server/share and
// file://server/share (UNC).
func stripFileScheme(ref string) (string, error) {
	rest := ref[len("file:"):]

	switch {
	case strings.HasPrefix(rest, "////"):
		// file:////server/share -> //server/share
		return "//" + strings.TrimLeft(rest, "/"), nil
	case strings.HasPrefix(rest, "///"):
		// file:///path or file:///C:/path
		p := rest[2:]
		if len(p) > 1 && driveLetterPattern.MatchString(p[1:]) {
			p = p[1:]
		}
		return p, nil
	case strings.HasPrefix(rest, "//"):
		// file://server/share -> UNC host form
		return rest, nil
	case strings.HasPrefix(rest, "/"):
		// file:/path
		return rest, nil
	default:
		return "", fmt.Errorf("%w: malformed file URI %q", ErrInvalidPath, ref)
	}
}

// isAbsoluteRef recognizes POSIX absolute, Windows drive, and UNC paths.
func isAbsoluteRef(ref string) bool {
	if strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, `\\`) {
		return true
	}
	return driveLetterPattern.MatchString(ref)
}

// checkSegments rejects any path segment containing "..".
func checkSegments(p string) error {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if strings.Contains(seg, "..") {
			return fmt.Errorf("%w: traversal segment %q", ErrInvalidPath, seg)
		}
	}
	return nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

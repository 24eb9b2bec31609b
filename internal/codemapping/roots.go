package codemapping

import (
	"strings"
)

// isPotentialMatch reports whether the shorter of the two slash-separated
// paths is a whole-segment suffix of the longer one.
func isPotentialMatch(sourcePath, framePath string) bool {
	return commonSuffix(sourcePath, framePath) == min(segments(sourcePath), segments(framePath))
}

// commonSuffix counts the trailing segments two paths share.
func commonSuffix(a, b string) int {
	ap := strings.Split(a, "/")
	bp := strings.Split(b, "/")
	n := 0
	for i, j := len(ap)-1, len(bp)-1; i >= 0 && j >= 0 && ap[i] == bp[j]; i, j = i-1, j-1 {
		n++
	}
	return n
}

func segments(p string) int {
	return strings.Count(p, "/") + 1
}

// findRoots derives (stack root, source root) from the frame path exactly as
// sent and the repository file it matched. The stack root keeps the frame's
// own separator and any leading "/" or "\", the source root is always
// slash-separated. ok is false when the paths share no trailing segment.
func findRoots(stackPath, sourcePath string) (stackRoot, sourceRoot string, ok bool) {
	if stackPath == "" {
		return "", "", false
	}
	if stackPath[0] == '/' || stackPath[0] == '\\' {
		stackRoot = stackPath[:1]
		stackPath = stackPath[1:]
	}
	first, _, _ := strings.Cut(stackPath, "/")

	switch {
	case stackPath == sourcePath:
		return stackRoot, "", true
	case strings.HasSuffix(sourcePath, "/"+stackPath):
		prefix := strings.TrimSuffix(sourcePath, stackPath)
		return stackRoot + first + "/", prefix + first + "/", true
	case strings.HasSuffix(stackPath, "/"+sourcePath):
		return stackRoot + strings.TrimSuffix(stackPath, sourcePath), "", true
	}

	delim := "/"
	if !strings.Contains(stackPath, "/") && strings.Contains(stackPath, "\\") {
		delim = "\\"
	}
	stackParts := strings.Split(strings.ReplaceAll(stackPath, "\\", "/"), "/")
	sourceParts := strings.Split(sourcePath, "/")
	first = stackParts[0]

	overlap := 0
	for len(stackParts) > 0 && len(sourceParts) > 0 && stackParts[len(stackParts)-1] == sourceParts[len(sourceParts)-1] {
		stackParts = stackParts[:len(stackParts)-1]
		sourceParts = sourceParts[:len(sourceParts)-1]
		overlap++
	}
	if overlap == 0 {
		return "", "", false
	}

	switch {
	case len(stackParts) == 0 && len(sourceParts) == 0:
		return stackRoot, "", true
	case len(stackParts) == 0:
		return stackRoot + first + delim, strings.Join(sourceParts, "/") + "/" + first + "/", true
	case len(sourceParts) == 0:
		return stackRoot + strings.Join(stackParts, delim) + delim, "", true
	default:
		return stackRoot + strings.Join(stackParts, delim) + delim, strings.Join(sourceParts, "/") + "/", true
	}
}

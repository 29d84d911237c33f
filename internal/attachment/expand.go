// Package attachment implements the attachment expander: it rewrites a
// user message containing `<vibe-work-attachment>PATH</vibe-work-attachment>`
// tags into a multi-block message carrying the original text plus one
// content block per distinct referenced file.
package attachment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"

	"github.com/vibeworks/agentcore/pkg/content"
)

// Tag is the literal wrapper the host preserves so its UI can re-render
// attachment badges; the expander never strips it from the original text.
var tagPattern = regexp.MustCompile(`<vibe-work-attachment>([^<]+)</vibe-work-attachment>`)

const (
	maxTextLines    = 2000
	maxLineChars    = 2000
	maxImageBytes   = 5 * 1024 * 1024
	maxDocumentBytes = 32 * 1024 * 1024
)

var imageExtensions = map[string]content.MediaType{
	".png":  content.MediaPNG,
	".jpg":  content.MediaJPEG,
	".jpeg": content.MediaJPEG,
	".gif":  content.MediaGIF,
	".webp": content.MediaWebP,
}

// Expand parses every attachment tag in text, resolves each referenced
// path against workDir, and returns a Message whose first block is the
// original text (tags intact) followed by one block per tag occurrence —
// a freshly built content block for each path's first occurrence, and a
// short reference note for every repeat of a path already seen.
func Expand(text, workDir string) content.Message {
	matches := tagPattern.FindAllStringSubmatch(text, -1)

	blocks := make([]content.Block, 0, len(matches)+1)
	blocks = append(blocks, content.Text{Text: text})

	seenAt := make(map[string]int) // resolved path -> 1-based occurrence index
	for _, m := range matches {
		raw := strings.TrimSpace(m[1])
		resolved := resolvePath(raw, workDir)

		if idx, ok := seenAt[resolved]; ok {
			blocks = append(blocks, content.Text{
				Text: fmt.Sprintf("[attachment %q already included above, see block %d]", raw, idx),
			})
			continue
		}

		block := buildBlock(resolved)
		blocks = append(blocks, block)
		seenAt[resolved] = len(blocks) - 1
	}

	return content.Message{Role: content.RoleUser, Content: blocks}
}

func resolvePath(raw, workDir string) string {
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(workDir, raw))
}

func buildBlock(path string) content.Block {
	info, err := os.Stat(path)
	if err != nil {
		return content.Text{Text: fmt.Sprintf("[unreadable attachment %q: %v]", path, err)}
	}

	if info.IsDir() {
		return directoryListingBlock(path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if mediaType, ok := imageExtensions[ext]; ok {
		return imageBlock(path, mediaType, info.Size())
	}
	if ext == ".pdf" {
		return documentBlock(path, info.Size())
	}
	return textFileBlock(path)
}

func directoryListingBlock(path string) content.Block {
	entries, err := os.ReadDir(path)
	if err != nil {
		return content.Text{Text: fmt.Sprintf("[unreadable attachment %q: %v]", path, err)}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return content.Text{Text: fmt.Sprintf("Directory listing for %s:\n%s", path, strings.Join(names, "\n"))}
}

func imageBlock(path string, mediaType content.MediaType, size int64) content.Block {
	if size > maxImageBytes {
		return content.Text{Text: fmt.Sprintf("[attachment %q exceeds the %d byte image size limit]", path, maxImageBytes)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return content.Text{Text: fmt.Sprintf("[unreadable attachment %q: %v]", path, err)}
	}
	// Decode to confirm the bytes are a genuine, intact image before
	// handing them to the provider as inline base64.
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return content.Text{Text: fmt.Sprintf("[attachment %q is not a valid image: %v]", path, err)}
	}
	return content.Image{MediaType: mediaType, Base64Data: base64.StdEncoding.EncodeToString(data)}
}

func documentBlock(path string, size int64) content.Block {
	if size > maxDocumentBytes {
		return content.Text{Text: fmt.Sprintf("[attachment %q exceeds the %d byte document size limit]", path, maxDocumentBytes)}
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return content.Text{Text: fmt.Sprintf("[attachment %q is not a valid PDF: %v]", path, err)}
	}
	defer f.Close()
	if r.NumPage() == 0 {
		return content.Text{Text: fmt.Sprintf("[attachment %q is an empty PDF]", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return content.Text{Text: fmt.Sprintf("[unreadable attachment %q: %v]", path, err)}
	}
	return content.Document{MediaType: content.MediaPDF, Base64Data: base64.StdEncoding.EncodeToString(data)}
}

func textFileBlock(path string) content.Block {
	data, err := os.ReadFile(path)
	if err != nil {
		return content.Text{Text: fmt.Sprintf("[unreadable attachment %q: %v]", path, err)}
	}

	lines := strings.Split(string(data), "\n")
	truncated := false
	if len(lines) > maxTextLines {
		lines = lines[:maxTextLines]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", path)
	for i, line := range lines {
		if len(line) > maxLineChars {
			line = line[:maxLineChars] + "...[line truncated]"
		}
		fmt.Fprintf(&b, "%5d\t%s\n", i+1, line)
	}
	if truncated {
		fmt.Fprintf(&b, "[truncated to %d of %d lines]\n", maxTextLines, len(strings.Split(string(data), "\n")))
	}
	return content.Text{Text: b.String()}
}

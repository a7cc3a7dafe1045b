package plan

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// BuildSingle makes a one-file plan from a bare URL, for downloads that do
// not go through a metalink descriptor. The size is unknown and there is
// nothing to verify against, so a completed fetch finishes unverified.
func BuildSingle(rawURL, name, outDir string) (*Plan, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("unusable url %q", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	if name == "" {
		name = path.Base(parsed.Path)
	}
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("cannot derive a file name from %q, use --name", rawURL)
	}

	target := filepath.Join(outDir, filepath.FromSlash(name))
	fp := &FilePlan{
		Name:       name,
		TargetPath: target,
		PartPath:   target + ".part",
		Size:       -1,
		Resources:  []Resource{{URL: parsed, Priority: 1}},
	}

	return &Plan{Files: []*FilePlan{fp}}, nil
}

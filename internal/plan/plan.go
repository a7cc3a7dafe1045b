package plan

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/engelphi/metalink-downloader/internal/infra/logger"
	"github.com/engelphi/metalink-downloader/internal/metalink"
)

// PlanErrorKind classifies per-file planning failures. A failed file never
// aborts its siblings.
type PlanErrorKind int

const (
	UnresolvableFile PlanErrorKind = iota
	InvalidPieceLayout
)

type PlanError struct {
	Kind   PlanErrorKind
	File   string
	Reason string
}

func (e *PlanError) Error() string {
	kind := "unresolvable file"
	if e.Kind == InvalidPieceLayout {
		kind = "invalid piece layout"
	}
	return fmt.Sprintf("%s: %s: %s", kind, e.File, e.Reason)
}

// Plan is the validated projection of a metalink document that drives the
// engine. Files that failed planning are kept in Invalid so the run can
// report them without touching the network.
type Plan struct {
	Files     []*FilePlan
	Invalid   []InvalidFile
	TotalSize int64
}

type InvalidFile struct {
	Name string
	Err  *PlanError
}

// FilePlan is the scheduling input for one file: where it goes, how big it
// is, how to verify it, and where it can be fetched from. All fields are
// immutable once built; only Segments carry mutable state.
type FilePlan struct {
	Name       string
	TargetPath string
	PartPath   string

	// Size is -1 when the descriptor does not declare one. The engine may
	// learn it from a HEAD probe before segment planning.
	Size int64

	Checksums []Checksum
	Pieces    *PieceHashes
	Resources []Resource

	Segments []*Segment
}

// Resource is one mirror candidate. Ordering is (Priority ascending, Order
// ascending); Order is the declared document position.
type Resource struct {
	URL      *url.URL
	Priority int
	Order    int
	Location string
}

func (r Resource) String() string { return r.URL.String() }

// Checksum is a declared whole-file digest. Digest is nil when the value was
// not valid hex; such entries are carried but cannot verify.
type Checksum struct {
	Algo   metalink.HashAlgorithm
	Tag    string
	Digest []byte
}

// Verifiable reports whether this checksum can actually be recomputed.
func (c Checksum) Verifiable() bool {
	return c.Algo.Verifiable() && len(c.Digest) > 0
}

// PieceHashes is the declared hash chain over fixed-length file slices.
// A nil entry in Digests marks a piece whose declared hash was unusable.
type PieceHashes struct {
	Algo    metalink.HashAlgorithm
	Length  int64
	Digests [][]byte
}

// Build projects a parsed document onto a Plan rooted at outDir. Resources
// with unparsable URLs or unfetchable schemes are dropped with a warning;
// files left without resources, or with inconsistent piece layouts, land in
// Plan.Invalid.
func Build(doc *metalink.Document, outDir string, log *logger.Logger) *Plan {
	p := &Plan{}

	for i := range doc.Files {
		fp, perr := buildFile(&doc.Files[i], outDir, log)
		if perr != nil {
			p.Invalid = append(p.Invalid, InvalidFile{Name: doc.Files[i].Name, Err: perr})
			continue
		}
		p.Files = append(p.Files, fp)
		if fp.Size > 0 {
			p.TotalSize += fp.Size
		}
	}

	return p
}

func buildFile(f *metalink.File, outDir string, log *logger.Logger) (*FilePlan, *PlanError) {
	target := filepath.Join(outDir, filepath.FromSlash(f.Name))

	fp := &FilePlan{
		Name:       f.Name,
		TargetPath: target,
		PartPath:   target + ".part",
		Size:       -1,
	}
	if f.Size != nil {
		fp.Size = *f.Size
	}

	for order, u := range f.URLs {
		raw := strings.TrimSpace(u.Value)
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			log.Warn("dropping unparsable url for %s: %q", f.Name, raw)
			continue
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			log.Warn("dropping url with unsupported scheme %q for %s", parsed.Scheme, f.Name)
			continue
		}

		prio := u.Priority
		if prio == 0 {
			// Absent priority sorts after every declared one.
			prio = 999999
		}

		fp.Resources = append(fp.Resources, Resource{
			URL:      parsed,
			Priority: prio,
			Order:    order,
			Location: u.Location,
		})
	}

	if len(fp.Resources) == 0 {
		return nil, &PlanError{Kind: UnresolvableFile, File: f.Name, Reason: "no usable url remains"}
	}

	sort.SliceStable(fp.Resources, func(i, j int) bool {
		if fp.Resources[i].Priority != fp.Resources[j].Priority {
			return fp.Resources[i].Priority < fp.Resources[j].Priority
		}
		return fp.Resources[i].Order < fp.Resources[j].Order
	})

	for _, h := range f.Hashes {
		algo := h.Algorithm()
		digest, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(h.Value)))
		if err != nil {
			log.Warn("checksum %q for %s is not valid hex, treating as unverifiable", h.Type, f.Name)
			digest = nil
		}
		if want := algo.DigestSize(); digest != nil && want > 0 && len(digest) != want {
			log.Warn("checksum %q for %s is %d bytes, %s needs %d, treating as unverifiable",
				h.Type, f.Name, len(digest), algo, want)
			digest = nil
		}
		if algo == metalink.HashUnsupported {
			log.Warn("checksum algorithm %q for %s is not supported, treating as unverifiable", h.Type, f.Name)
		}
		fp.Checksums = append(fp.Checksums, Checksum{Algo: algo, Tag: h.Type, Digest: digest})
	}

	if f.Pieces != nil {
		if fp.Size < 0 {
			return nil, &PlanError{Kind: InvalidPieceLayout, File: f.Name, Reason: "piece hashes require a declared file size"}
		}

		want := pieceCount(fp.Size, f.Pieces.Length)
		if len(f.Pieces.Hashes) != want {
			return nil, &PlanError{
				Kind: InvalidPieceLayout,
				File: f.Name,
				Reason: fmt.Sprintf("declared %d piece hashes, size %d with piece length %d needs %d",
					len(f.Pieces.Hashes), fp.Size, f.Pieces.Length, want),
			}
		}

		ph := &PieceHashes{
			Algo:    f.Pieces.Algorithm(),
			Length:  f.Pieces.Length,
			Digests: make([][]byte, len(f.Pieces.Hashes)),
		}
		for i, v := range f.Pieces.Hashes {
			digest, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(v)))
			if err != nil {
				log.Warn("piece hash %d for %s is not valid hex, piece will not verify", i, f.Name)
				continue
			}
			if want := ph.Algo.DigestSize(); want > 0 && len(digest) != want {
				log.Warn("piece hash %d for %s has the wrong length, piece will not verify", i, f.Name)
				continue
			}
			ph.Digests[i] = digest
		}
		fp.Pieces = ph
	}

	return fp, nil
}

// StrongestChecksum returns the strongest verifiable declared checksum, or
// nil when the file cannot be verified at whole-file level.
func (f *FilePlan) StrongestChecksum() *Checksum {
	var best *Checksum
	for i := range f.Checksums {
		c := &f.Checksums[i]
		if !c.Verifiable() {
			continue
		}
		if best == nil || c.Algo.Strength() > best.Algo.Strength() {
			best = c
		}
	}
	return best
}

func pieceCount(size, length int64) int {
	if size == 0 {
		return 1
	}
	return int((size + length - 1) / length)
}

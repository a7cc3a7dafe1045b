package metalink

import (
	"errors"
	"strings"
	"testing"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<metalink xmlns="urn:ietf:params:xml:ns:metalink">
  <generator>gen/1.0</generator>
  <file name="dist/app.tar.gz">
    <size>1048576</size>
    <hash type="sha-256">aec070645fe53ee3b3763059376134f058cc337247c978add178b6ccdfb0019f</hash>
    <hash type="md5">9e107d9d372bb6826bd81d3542a419d6</hash>
    <url priority="1" location="de">https://mirror-a.example.com/app.tar.gz</url>
    <url priority="2">https://mirror-b.example.com/app.tar.gz</url>
  </file>
</metalink>`

func TestParseValid(t *testing.T) {
	doc, err := NewParser().Parse(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Generator != "gen/1.0" {
		t.Errorf("expected generator gen/1.0, got %q", doc.Generator)
	}
	if len(doc.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(doc.Files))
	}

	f := doc.Files[0]
	if f.Name != "dist/app.tar.gz" {
		t.Errorf("unexpected name %q", f.Name)
	}
	if f.Size == nil || *f.Size != 1048576 {
		t.Errorf("expected size 1048576, got %v", f.Size)
	}
	if len(f.Hashes) != 2 {
		t.Fatalf("expected 2 hashes, got %d", len(f.Hashes))
	}
	if f.Hashes[0].Algorithm() != HashSHA256 {
		t.Errorf("expected sha-256, got %s", f.Hashes[0].Algorithm())
	}
	if len(f.URLs) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(f.URLs))
	}
	if f.URLs[0].Priority != 1 || f.URLs[0].Location != "de" {
		t.Errorf("unexpected first url attrs: %+v", f.URLs[0])
	}
	if f.URLs[1].Priority != 2 {
		t.Errorf("expected priority 2, got %d", f.URLs[1].Priority)
	}
}

func TestParseNoNamespaceAccepted(t *testing.T) {
	doc := `<metalink><file name="a.bin"><url>https://example.com/a.bin</url></file></metalink>`
	if _, err := NewParser().Parse(strings.NewReader(doc)); err != nil {
		t.Fatalf("expected a namespace-less document to parse, got %v", err)
	}
}

func TestParsePieces(t *testing.T) {
	doc := `<metalink xmlns="urn:ietf:params:xml:ns:metalink">
  <file name="a.bin">
    <size>200</size>
    <pieces type="sha-256" length="100">
      <hash>aec070645fe53ee3b3763059376134f058cc337247c978add178b6ccdfb0019f</hash>
      <hash>aec070645fe53ee3b3763059376134f058cc337247c978add178b6ccdfb0019f</hash>
    </pieces>
    <url>https://example.com/a.bin</url>
  </file>
</metalink>`

	parsed, err := NewParser().Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	p := parsed.Files[0].Pieces
	if p == nil {
		t.Fatal("expected pieces to be parsed")
	}
	if p.Length != 100 {
		t.Errorf("expected piece length 100, got %d", p.Length)
	}
	if len(p.Hashes) != 2 {
		t.Errorf("expected 2 piece hashes, got %d", len(p.Hashes))
	}
	if p.Algorithm() != HashSHA256 {
		t.Errorf("expected sha-256 pieces, got %s", p.Algorithm())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind ParseErrorKind
	}{
		{
			name: "malformed xml",
			doc:  `<metalink><file`,
			kind: MalformedXML,
		},
		{
			name: "unknown namespace",
			doc:  `<metalink xmlns="urn:example:something-else"><file name="a"><url>https://x/a</url></file></metalink>`,
			kind: UnknownNamespace,
		},
		{
			name: "no files",
			doc:  `<metalink xmlns="urn:ietf:params:xml:ns:metalink"></metalink>`,
			kind: MissingRequiredField,
		},
		{
			name: "missing file name",
			doc:  `<metalink><file><url>https://x/a</url></file></metalink>`,
			kind: MissingRequiredField,
		},
		{
			name: "path traversal name",
			doc:  `<metalink><file name="../etc/passwd"><url>https://x/a</url></file></metalink>`,
			kind: InvalidValue,
		},
		{
			name: "absolute name",
			doc:  `<metalink><file name="/etc/passwd"><url>https://x/a</url></file></metalink>`,
			kind: InvalidValue,
		},
		{
			name: "negative size",
			doc:  `<metalink><file name="a"><size>-5</size><url>https://x/a</url></file></metalink>`,
			kind: InvalidValue,
		},
		{
			name: "no urls",
			doc:  `<metalink><file name="a"><size>5</size></file></metalink>`,
			kind: MissingRequiredField,
		},
		{
			name: "priority out of range",
			doc:  `<metalink><file name="a"><url priority="1000000">https://x/a</url></file></metalink>`,
			kind: InvalidValue,
		},
		{
			name: "zero piece length",
			doc: `<metalink><file name="a"><size>10</size>
				<pieces type="sha-256" length="0"><hash>ab</hash></pieces>
				<url>https://x/a</url></file></metalink>`,
			kind: InvalidValue,
		},
		{
			name: "pieces without hashes",
			doc: `<metalink><file name="a"><size>10</size>
				<pieces type="sha-256" length="5"></pieces>
				<url>https://x/a</url></file></metalink>`,
			kind: MissingRequiredField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if perr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, perr.Kind)
			}
		})
	}
}

package metalink

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ParseErrorKind classifies descriptor parse failures.
type ParseErrorKind int

const (
	MalformedXML ParseErrorKind = iota
	UnknownNamespace
	MissingRequiredField
	InvalidValue
)

func (k ParseErrorKind) String() string {
	switch k {
	case MalformedXML:
		return "malformed xml"
	case UnknownNamespace:
		return "unknown namespace"
	case MissingRequiredField:
		return "missing required field"
	case InvalidValue:
		return "invalid value"
	}
	return "parse error"
}

// ParseError is a fatal descriptor error. No network activity happens after
// one of these.
type ParseError struct {
	Kind   ParseErrorKind
	Field  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes and validates a metalink document. Optional elements absent
// from the document stay zero-valued; only structural problems fail.
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	var doc Document
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, &ParseError{Kind: MalformedXML, Err: err}
	}

	if doc.XMLName.Space != "" && doc.XMLName.Space != Namespace {
		return nil, &ParseError{Kind: UnknownNamespace, Reason: doc.XMLName.Space}
	}

	if len(doc.Files) == 0 {
		return nil, &ParseError{Kind: MissingRequiredField, Field: "metalink.file", Reason: "document declares no files"}
	}

	for i := range doc.Files {
		if err := validateFile(&doc.Files[i], i); err != nil {
			return nil, err
		}
	}

	return &doc, nil
}

func validateFile(f *File, idx int) error {
	field := func(name string) string {
		return fmt.Sprintf("file[%d].%s", idx, name)
	}

	if f.Name == "" {
		return &ParseError{Kind: MissingRequiredField, Field: field("name")}
	}

	// RFC 5854 forbids path traversal in file names.
	if strings.Contains(f.Name, "..") || strings.HasPrefix(f.Name, "/") {
		return &ParseError{Kind: InvalidValue, Field: field("name"), Reason: "unsafe path"}
	}

	if f.Size != nil && *f.Size < 0 {
		return &ParseError{Kind: InvalidValue, Field: field("size"), Reason: "negative size"}
	}

	if len(f.URLs) == 0 {
		return &ParseError{Kind: MissingRequiredField, Field: field("url")}
	}

	for j, u := range f.URLs {
		if u.Priority < 0 || u.Priority > 999999 {
			return &ParseError{
				Kind:   InvalidValue,
				Field:  fmt.Sprintf("file[%d].url[%d].priority", idx, j),
				Reason: "priority must be between 1 and 999999",
			}
		}
	}

	if f.Pieces != nil {
		if f.Pieces.Length <= 0 {
			return &ParseError{Kind: InvalidValue, Field: field("pieces.length"), Reason: "piece length must be positive"}
		}
		if len(f.Pieces.Hashes) == 0 {
			return &ParseError{Kind: MissingRequiredField, Field: field("pieces.hash")}
		}
	}

	return nil
}

package metalink

import "encoding/xml"

// Namespace is the XML namespace of RFC 5854 metalink documents.
const Namespace = "urn:ietf:params:xml:ns:metalink"

// Document is the parsed metalink:metalink root element.
type Document struct {
	XMLName   xml.Name `xml:"metalink"`
	Generator string   `xml:"generator"`
	Origin    string   `xml:"origin"`
	Published string   `xml:"published"`
	Updated   string   `xml:"updated"`
	Files     []File   `xml:"file"`
}

// File is one metalink:file element: a named payload with integrity
// metadata and one or more source URLs.
type File struct {
	Name     string  `xml:"name,attr"`
	Size     *int64  `xml:"size"`
	Identity string  `xml:"identity"`
	Version  string  `xml:"version"`
	Hashes   []Hash  `xml:"hash"`
	Pieces   *Pieces `xml:"pieces"`
	URLs     []URL   `xml:"url"`
}

// Hash is a whole-file checksum declaration.
type Hash struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// Algorithm resolves the IANA textual name of the hash.
func (h Hash) Algorithm() HashAlgorithm {
	return ParseHashAlgorithm(h.Type)
}

// Pieces declares a hash chain over fixed-length slices of the file.
// The final piece may be shorter than Length.
type Pieces struct {
	Type   string   `xml:"type,attr"`
	Length int64    `xml:"length,attr"`
	Hashes []string `xml:"hash"`
}

// Algorithm resolves the IANA textual name of the piece hashes.
func (p Pieces) Algorithm() HashAlgorithm {
	return ParseHashAlgorithm(p.Type)
}

// URL is one mirror location. Priority is ascending-preferred; zero means
// the attribute was absent and sorts last.
type URL struct {
	Priority int    `xml:"priority,attr"`
	Location string `xml:"location,attr"`
	Value    string `xml:",chardata"`
}

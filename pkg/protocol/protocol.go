// Package protocol defines the LNDP wire format: endpoint paths, query
// parameters, JSON shapes and the document id syntax used across the network.
package protocol

import (
	"strings"

	"github.com/joe/lndp/pkg/filesystem"
)

// ServiceType is the DNS-SD service type LNDP servers advertise.
const ServiceType = "_lndp._tcp"

// ServiceDomain is the mDNS domain services are advertised in.
const ServiceDomain = "local."

// SSLAttribute is the TXT record key announcing an HTTPS listener.
const SSLAttribute = "ssl"

// PathPrefix is the prefix clients put in front of every endpoint. Servers
// also answer without it.
const PathPrefix = "/lndp"

// Endpoints.
const (
	EndpointQueryDocument       = "/queryDocument"
	EndpointQueryChildDocuments = "/queryChildDocuments"
	EndpointDocumentRead        = "/documentRead"
	EndpointDocumentReadThumb   = "/documentReadThumb"
	EndpointDocumentCreate      = "/documentCreate"
	EndpointDocumentAppend      = "/documentAppend"
	EndpointDocumentRename      = "/documentRename"
)

// Query parameters and multipart fields.
const (
	ParamPath    = "path"
	ParamOffset  = "offset"
	ParamSize    = "size"
	ParamName    = "name"
	ParamIsDir   = "isdir"
	ParamNewName = "newname"
	FieldBlock   = "block"
)

// ErrorHeader carries the failure category on 500 responses. The body stays
// empty so older clients see the same response as before.
const ErrorHeader = "X-Lndp-Error"

// Error categories sent in ErrorHeader.
const (
	ErrorNotFound      = "not_found"
	ErrorIO            = "io"
	ErrorAlreadyExists = "already_exists"
	ErrorUnsupported   = "unsupported"
)

// Element is one document as serialised by queryDocument and
// queryChildDocuments.
type Element struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsDir      bool   `json:"isdir"`
	IsReadOnly bool   `json:"isreadonly"`
	Size       int64  `json:"size"`
	Date       int64  `json:"date"`
	Type       string `json:"type"`
	Thumb      bool   `json:"thumb"`
}

// CreateReply answers documentCreate and documentRename. Name is omitted when
// an existing file was truncated.
type CreateReply struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// AppendReply answers documentAppend.
type AppendReply struct {
	ID string `json:"id"`
}

// NewElement converts a provider DocumentRef to its wire form, replacing the
// provider id with the network id.
func NewElement(serverName string, ref filesystem.DocumentRef, readOnly bool) Element {
	return Element{
		ID:         JoinID(serverName, ref.ID),
		Name:       ref.Name,
		IsDir:      ref.IsDirectory,
		IsReadOnly: readOnly,
		Size:       ref.Length,
		Date:       ref.Timestamp,
		Type:       ref.MimeType,
		Thumb:      ref.SupportsThumbnail,
	}
}

// DocumentRef converts a wire element back to a DocumentRef. The network id
// is kept as is so it can be sent back to the same server.
func (e Element) DocumentRef() filesystem.DocumentRef {
	ref := filesystem.DocumentRef{
		ID:                e.ID,
		Name:              e.Name,
		IsDirectory:       e.IsDir,
		MimeType:          e.Type,
		Length:            e.Size,
		Timestamp:         e.Date,
		SupportsThumbnail: e.Thumb,
	}

	if ref.IsDirectory {
		ref.MimeType = filesystem.DirMimeType
		ref.Length = 0
	} else if ref.MimeType == "" || ref.MimeType == filesystem.DirMimeType {
		ref.MimeType = filesystem.DefaultMimeType
	}

	return ref
}

// JoinID builds a network document id "<serverName>:<providerPath>".
func JoinID(serverName, providerPath string) string {
	return serverName + ":" + providerPath
}

// SplitID splits a network document id on its first ':'. An id without a
// colon is treated as a bare provider path.
func SplitID(id string) (serverName, providerPath string) {
	name, rest, ok := strings.Cut(id, ":")
	if !ok {
		return "", id
	}

	return name, rest
}

// RootID returns the network id of a server's root document.
func RootID(serverName string) string {
	return JoinID(serverName, filesystem.RootID)
}

// ParseSSL interprets the ssl TXT attribute: TRUE, T or 1 in any case.
func ParseSSL(value string) bool {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TRUE", "T", "1":
		return true
	default:
		return false
	}
}

// ParseTXT splits DNS-SD TXT records of the form key=value into a map.
// Keys are lower-cased.
func ParseTXT(records []string) map[string]string {
	attrs := make(map[string]string, len(records))

	for _, record := range records {
		key, value, _ := strings.Cut(record, "=")
		if key == "" {
			continue
		}

		attrs[strings.ToLower(key)] = value
	}

	return attrs
}

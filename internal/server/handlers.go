package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/joe/lndp/internal/logging"
	"github.com/joe/lndp/pkg/filesystem"
	"github.com/joe/lndp/pkg/protocol"
)

// Request limits.
const (
	// MaxReadSize caps the size parameter of documentRead.
	MaxReadSize = 16 * 1024 * 1024
	// MaxAppendSize caps the body of one documentAppend request.
	MaxAppendSize = 4 * filesystem.BufferSize
)

var (
	errMissingPath  = fmt.Errorf("missing %s parameter: %w", protocol.ParamPath, filesystem.ErrNotFound)
	errReadOnly     = fmt.Errorf("share is read-only: %w", filesystem.ErrUnsupported)
	errNotDirectory = fmt.Errorf("not a directory: %w", filesystem.ErrNotFound)
	errNoThumbnail  = fmt.Errorf("no thumbnail: %w", filesystem.ErrUnsupported)
)

func (s *Server) handleQueryDocument(w http.ResponseWriter, r *http.Request) {
	ref, err := s.lookup(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, r, []protocol.Element{s.element(ref)})
}

func (s *Server) handleQueryChildDocuments(w http.ResponseWriter, r *http.Request) {
	dir, err := s.lookup(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if !dir.IsDirectory {
		s.fail(w, r, fmt.Errorf("failed to list %s: %w", dir.ID, errNotDirectory))
		return
	}

	children, err := s.tree.ListChildren(r.Context(), dir)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	elements := make([]protocol.Element, 0, len(children))
	for _, child := range children {
		elements = append(elements, s.element(child))
	}

	s.writeJSON(w, r, elements)
}

func (s *Server) handleDocumentRead(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	offset, err := strconv.ParseInt(query.Get(protocol.ParamOffset), 10, 64)
	if err != nil || offset < 0 {
		s.fail(w, r, fmt.Errorf("invalid offset %q: %w", query.Get(protocol.ParamOffset), filesystem.ErrIO))
		return
	}

	size, err := strconv.Atoi(query.Get(protocol.ParamSize))
	if err != nil || size <= 0 {
		s.fail(w, r, fmt.Errorf("invalid size %q: %w", query.Get(protocol.ParamSize), filesystem.ErrIO))
		return
	}

	file, err := s.lookup(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data, err := s.tree.ReadRange(r.Context(), file, offset, min(size, MaxReadSize))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeBytes(w, r, "application/octet-stream", data)
}

func (s *Server) handleDocumentReadThumb(w http.ResponseWriter, r *http.Request) {
	ref, err := s.lookup(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	thumb := s.tree.Thumbnail(r.Context(), ref)
	if thumb == nil {
		s.fail(w, r, fmt.Errorf("failed to thumbnail %s: %w", ref.ID, errNoThumbnail))
		return
	}

	s.writeBytes(w, r, "image/jpeg", thumb)
}

// handleDocumentCreate creates a child of path when name is given, otherwise
// truncates the file at path.
func (s *Server) handleDocumentCreate(w http.ResponseWriter, r *http.Request) {
	ref, err := s.lookup(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	name := r.URL.Query().Get(protocol.ParamName)
	if name == "" {
		s.truncate(w, r, ref)
		return
	}

	isDir, _ := strconv.ParseBool(r.URL.Query().Get(protocol.ParamIsDir))

	var created filesystem.DocumentRef
	if isDir {
		created, err = s.tree.CreateDirectory(r.Context(), ref, name)
	} else {
		created, err = s.tree.CreateFile(r.Context(), ref, filesystem.MimeTypeByName(name), name)
	}

	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, r, protocol.CreateReply{ID: s.networkID(created), Name: created.Name})
}

func (s *Server) truncate(w http.ResponseWriter, r *http.Request, file filesystem.DocumentRef) {
	writer, err := s.tree.OpenWriter(r.Context(), file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := writer.Close(); err != nil {
		s.fail(w, r, fmt.Errorf("failed to truncate %s: %w: %w", file.ID, filesystem.ErrIO, err))
		return
	}

	s.writeJSON(w, r, protocol.CreateReply{ID: s.networkID(file)})
}

func (s *Server) handleDocumentAppend(w http.ResponseWriter, r *http.Request) {
	file, err := s.lookup(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAppendSize)

	block, _, err := r.FormFile(protocol.FieldBlock)
	if err != nil {
		s.fail(w, r, fmt.Errorf("failed to read block for %s: %w: %w", file.ID, filesystem.ErrIO, err))
		return
	}
	defer block.Close()

	data, err := io.ReadAll(block)
	if err != nil {
		s.fail(w, r, fmt.Errorf("failed to read block for %s: %w: %w", file.ID, filesystem.ErrIO, err))
		return
	}

	if err := s.tree.AppendBytes(r.Context(), file, data); err != nil {
		s.fail(w, r, err)
		return
	}

	s.metrics.AddReceived(len(data))
	s.writeJSON(w, r, protocol.AppendReply{ID: s.networkID(file)})
}

func (s *Server) handleDocumentRename(w http.ResponseWriter, r *http.Request) {
	ref, err := s.lookup(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	renamed, err := s.tree.Rename(r.Context(), ref, r.URL.Query().Get(protocol.ParamNewName))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, r, protocol.CreateReply{ID: s.networkID(renamed), Name: renamed.Name})
}

// writable rejects write endpoints on a read-only share.
func (s *Server) writable(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Writable {
			s.fail(w, r, errReadOnly)
			return
		}

		next(w, r)
	}
}

// lookup resolves the path parameter to a provider DocumentRef. Ids may carry
// this server's name as prefix; ids naming another server are not found.
func (s *Server) lookup(r *http.Request) (filesystem.DocumentRef, error) {
	id := r.URL.Query().Get(protocol.ParamPath)
	if id == "" {
		return filesystem.DocumentRef{}, errMissingPath
	}

	name, providerPath := protocol.SplitID(id)
	if name != "" && name != s.cfg.ServerName {
		return filesystem.DocumentRef{}, fmt.Errorf("document %s belongs to %q: %w", id, name, filesystem.ErrNotFound)
	}

	if providerPath == "" {
		return filesystem.DocumentRef{}, errMissingPath
	}

	return s.tree.Stat(r.Context(), providerPath) //nolint:wrapcheck // Providers already add context
}

func (s *Server) element(ref filesystem.DocumentRef) protocol.Element {
	return protocol.NewElement(s.cfg.ServerName, ref, !s.cfg.Writable)
}

func (s *Server) networkID(ref filesystem.DocumentRef) string {
	return protocol.JoinID(s.cfg.ServerName, ref.ID)
}

// fail answers 500 with an empty body and the error category header, and logs
// the cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := protocol.ErrorCode(err)

	s.metrics.RecordFailure(code)
	logging.WithContext(r.Context(), s.logger).Warn("request failed",
		zap.String("path", r.URL.Path),
		zap.String("document", r.URL.Query().Get(protocol.ParamPath)),
		zap.String("category", code),
		zap.Error(err))

	w.Header().Set(protocol.ErrorHeader, code)
	w.WriteHeader(http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.fail(w, r, fmt.Errorf("failed to encode response: %w: %w", filesystem.ErrIO, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) writeBytes(w http.ResponseWriter, _ *http.Request, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	n, _ := w.Write(data)
	s.metrics.AddServed(n)
}

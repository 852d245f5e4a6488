// Package remote implements filesystem.TreeProvider over the LNDP wire
// protocol, so a share served by another device can be browsed and used as a
// copy source or destination.
package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joe/lndp/pkg/filesystem"
	"github.com/joe/lndp/pkg/protocol"
)

// Exported constants.
const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 20 * time.Second
	// Boundary is the multipart boundary used for appended blocks.
	Boundary = "lndp-block-boundary"
)

var errEmptyBaseURL = errors.New("base URL is required")

// Config holds client configuration.
type Config struct {
	// BaseURL is scheme://host:port of the server.
	BaseURL string
	// Token is sent as "Authorization: Bearer <token>".
	Token string
	// ServerName is the server's name if already known from discovery.
	// Otherwise it is learned from the root id.
	ServerName string
	Timeout    time.Duration
	ChunkSize  int
	Retry      RetryConfig
	// InsecureTLS accepts self-signed certificates, common for LAN servers.
	InsecureTLS bool
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client is a TreeProvider backed by a remote LNDP server. Document ids are
// the network ids the server returns ("<serverName>:<path>").
type Client struct {
	baseURL    string
	token      string
	chunkSize  int
	retry      RetryConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu         sync.RWMutex
	serverName string
}

// New creates a client. No request is made until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errEmptyBaseURL
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, filesystem.ErrUnsupported)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = filesystem.BufferSize
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // Stdlib default
		if cfg.InsecureTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Opt-in for LAN servers
		}

		httpClient = &http.Client{Timeout: cfg.Timeout, Transport: transport}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(base.String(), "/"),
		token:      cfg.Token,
		chunkSize:  cfg.ChunkSize,
		retry:      cfg.Retry,
		httpClient: httpClient,
		logger:     cfg.Logger,
		serverName: cfg.ServerName,
	}, nil
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ServerName returns the server name, known after Root or from Config.
func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.serverName
}

// AppendBytes sends data as one multipart POST with a single "block" field.
func (c *Client) AppendBytes(ctx context.Context, file filesystem.DocumentRef, data []byte) error {
	var body bytes.Buffer

	mw := multipart.NewWriter(&body)
	if err := mw.SetBoundary(Boundary); err != nil {
		return fmt.Errorf("failed to build upload for %s: %w", file.ID, err)
	}

	part, err := mw.CreateFormFile(protocol.FieldBlock, protocol.FieldBlock)
	if err != nil {
		return fmt.Errorf("failed to build upload for %s: %w", file.ID, err)
	}

	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to build upload for %s: %w", file.ID, err)
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build upload for %s: %w", file.ID, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, protocol.EndpointDocumentAppend, pathParams(file.ID), &body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())

	var reply protocol.AppendReply

	return c.decode(req, &reply)
}

// CreateDirectory creates a directory under parent.
func (c *Client) CreateDirectory(ctx context.Context, parent filesystem.DocumentRef, name string) (filesystem.DocumentRef, error) {
	return c.create(ctx, parent, name, true)
}

// CreateFile creates an empty file under parent. The server picks the MIME
// type from the name.
func (c *Client) CreateFile(ctx context.Context, parent filesystem.DocumentRef, _, name string) (filesystem.DocumentRef, error) {
	return c.create(ctx, parent, name, false)
}

// DownloadWhole reads file from offset 0 in chunks until the server answers
// with an empty chunk, writing everything to w. Any failed chunk aborts the
// download. progress, if set, is called after every chunk.
func (c *Client) DownloadWhole(
	ctx context.Context,
	file filesystem.DocumentRef,
	w io.Writer,
	progress func(written int64),
) (int64, error) {
	var offset int64

	for {
		chunk, err := c.ReadRange(ctx, file, offset, c.chunkSize)
		if err != nil {
			return offset, err
		}

		if len(chunk) == 0 {
			return offset, nil
		}

		if _, err := w.Write(chunk); err != nil {
			return offset, fmt.Errorf("failed to write %s: %w: %w", file.Name, filesystem.ErrIO, err)
		}

		offset += int64(len(chunk))

		if progress != nil {
			progress(offset)
		}
	}
}

// ListChildren returns the children of dir.
func (c *Client) ListChildren(ctx context.Context, dir filesystem.DocumentRef) ([]filesystem.DocumentRef, error) {
	var elements []protocol.Element

	err := withRetry(ctx, c.retry, func() error {
		return c.getJSON(ctx, protocol.EndpointQueryChildDocuments, pathParams(dir.ID), &elements)
	})
	if err != nil {
		return nil, err
	}

	refs := make([]filesystem.DocumentRef, 0, len(elements))
	for _, element := range elements {
		refs = append(refs, element.DocumentRef())
	}

	return refs, nil
}

// OpenReader streams file through a bounded channel fed by a background
// ReadRange loop. Closing the reader stops the loop.
func (c *Client) OpenReader(ctx context.Context, file filesystem.DocumentRef) (io.ReadCloser, error) {
	return newChunkReader(ctx, func(ctx context.Context, offset int64) ([]byte, error) {
		return c.ReadRange(ctx, file, offset, c.chunkSize)
	}), nil
}

// OpenWriter truncates file on the server and returns a writer that uploads
// one block per chunk.
func (c *Client) OpenWriter(ctx context.Context, file filesystem.DocumentRef) (io.WriteCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, protocol.EndpointDocumentCreate, pathParams(file.ID), nil)
	if err != nil {
		return nil, err
	}

	var reply protocol.CreateReply
	if err := c.decode(req, &reply); err != nil {
		return nil, err
	}

	return newChunkWriter(c.chunkSize, func(block []byte) error {
		return c.AppendBytes(ctx, file, block)
	}), nil
}

// ReadRange returns up to maxSize bytes of file from offset.
func (c *Client) ReadRange(ctx context.Context, file filesystem.DocumentRef, offset int64, maxSize int) ([]byte, error) {
	if offset < 0 || maxSize <= 0 {
		return nil, fmt.Errorf("failed to read %s: invalid range offset=%d size=%d: %w",
			file.ID, offset, maxSize, filesystem.ErrIO)
	}

	params := pathParams(file.ID)
	params.Set(protocol.ParamOffset, strconv.FormatInt(offset, 10))
	params.Set(protocol.ParamSize, strconv.Itoa(maxSize))

	req, err := c.newRequest(ctx, http.MethodGet, protocol.EndpointDocumentRead, params, nil)
	if err != nil {
		return nil, err
	}

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if len(data) > maxSize {
		return nil, fmt.Errorf("failed to read %s: server sent %d bytes for %d: %w",
			file.ID, len(data), maxSize, filesystem.ErrIO)
	}

	return data, nil
}

// Rename renames ref and returns its new snapshot.
func (c *Client) Rename(ctx context.Context, ref filesystem.DocumentRef, newName string) (filesystem.DocumentRef, error) {
	params := pathParams(ref.ID)
	params.Set(protocol.ParamNewName, newName)

	req, err := c.newRequest(ctx, http.MethodGet, protocol.EndpointDocumentRename, params, nil)
	if err != nil {
		return filesystem.DocumentRef{}, err
	}

	var reply protocol.CreateReply
	if err := c.decode(req, &reply); err != nil {
		return filesystem.DocumentRef{}, err
	}

	return c.Stat(ctx, reply.ID)
}

// Root returns the server's root directory and records the server name
// carried by its id.
func (c *Client) Root(ctx context.Context) (filesystem.DocumentRef, error) {
	id := filesystem.RootID
	if name := c.ServerName(); name != "" {
		id = protocol.RootID(name)
	}

	root, err := c.Stat(ctx, id)
	if err != nil {
		return filesystem.DocumentRef{}, err
	}

	if name, _ := protocol.SplitID(root.ID); name != "" {
		c.mu.Lock()
		c.serverName = name
		c.mu.Unlock()
	}

	return root, nil
}

// Stat returns the document with the given network id.
func (c *Client) Stat(ctx context.Context, id string) (filesystem.DocumentRef, error) {
	var elements []protocol.Element

	err := withRetry(ctx, c.retry, func() error {
		return c.getJSON(ctx, protocol.EndpointQueryDocument, pathParams(id), &elements)
	})
	if err != nil {
		return filesystem.DocumentRef{}, err
	}

	if len(elements) != 1 {
		return filesystem.DocumentRef{}, fmt.Errorf("failed to stat %s: expected one element, got %d: %w",
			id, len(elements), filesystem.ErrIO)
	}

	return elements[0].DocumentRef(), nil
}

// Thumbnail fetches the server generated thumbnail, or nil.
func (c *Client) Thumbnail(ctx context.Context, ref filesystem.DocumentRef) []byte {
	if !ref.SupportsThumbnail {
		return nil
	}

	var data []byte

	err := withRetry(ctx, c.retry, func() error {
		req, err := c.newRequest(ctx, http.MethodGet, protocol.EndpointDocumentReadThumb, pathParams(ref.ID), nil)
		if err != nil {
			return err
		}

		data, err = c.do(req)

		return err
	})
	if err != nil || len(data) == 0 {
		c.logger.Debug("no thumbnail", zap.String("id", ref.ID), zap.Error(err))
		return nil
	}

	return data
}

func (c *Client) create(
	ctx context.Context,
	parent filesystem.DocumentRef,
	name string,
	isDir bool,
) (filesystem.DocumentRef, error) {
	params := pathParams(parent.ID)
	params.Set(protocol.ParamName, name)
	params.Set(protocol.ParamIsDir, boolParam(isDir))

	req, err := c.newRequest(ctx, http.MethodGet, protocol.EndpointDocumentCreate, params, nil)
	if err != nil {
		return filesystem.DocumentRef{}, err
	}

	var reply protocol.CreateReply
	if err := c.decode(req, &reply); err != nil {
		return filesystem.DocumentRef{}, err
	}

	return c.Stat(ctx, reply.ID)
}

// do sends req and returns the body of a 200 response. Transport failures
// are retryable; server answers are not.
func (c *Client) do(req *http.Request) ([]byte, error) {
	endpoint := strings.TrimPrefix(req.URL.Path, protocol.PathPrefix)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retryable(fmt.Errorf("failed to call %s: %w: %w", endpoint, filesystem.ErrIO, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable(fmt.Errorf("failed to read %s response: %w: %w", endpoint, filesystem.ErrIO, err))
	}

	if resp.StatusCode != http.StatusOK {
		sentinel := protocol.ErrorForCode(resp.Header.Get(protocol.ErrorHeader))
		c.logger.Debug("request failed",
			zap.String("endpoint", endpoint),
			zap.String("path", req.URL.Query().Get(protocol.ParamPath)),
			zap.Int("status", resp.StatusCode))

		return nil, fmt.Errorf("%s %s returned %d: %w",
			endpoint, req.URL.Query().Get(protocol.ParamPath), resp.StatusCode, sentinel)
	}

	return data, nil
}

func (c *Client) decode(req *http.Request, out any) error {
	data, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w: %w", req.URL.Path, filesystem.ErrIO, err)
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return err
	}

	return c.decode(req, out)
}

func (c *Client) newRequest(
	ctx context.Context,
	method, endpoint string,
	params url.Values,
	body io.Reader,
) (*http.Request, error) {
	target := c.baseURL + protocol.PathPrefix + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

func pathParams(id string) url.Values {
	return url.Values{protocol.ParamPath: []string{id}}
}

// Package offline is the catch-all feature that answers app requests through
// the offline asset cache.
package offline

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/padariapdv/internal/app/system/limits"
	offlinesys "github.com/dalemusser/padariapdv/internal/app/system/offline"
	"go.uber.org/zap"
)

// SourceHeader names the response header that reports where the body came
// from: cache, network or fallback.
const SourceHeader = "X-Offline-Source"

// errBodyTooLarge rejects request bodies that would have to be truncated.
var errBodyTooLarge = errors.New("request body exceeds limit")

// Hop-by-hop headers are never forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler intercepts requests and resolves them with the offline manager.
type Handler struct {
	Offline *offlinesys.Manager
	Log     *zap.Logger
}

// NewHandler constructs an interception Handler.
func NewHandler(mgr *offlinesys.Manager, logger *zap.Logger) *Handler {
	return &Handler{Offline: mgr, Log: logger}
}

// ServeHTTP resolves r. Origin-form requests are addressed to the app origin;
// absolute-form (proxy) requests keep their own URL, which is how cross-origin
// assets reach the cross-origin path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.intercepted(r)
	if errors.Is(err, errBodyTooLarge) {
		h.Log.Warn("intercepted request body too large",
			zap.String("url", r.URL.String()),
			zap.Int("limit", limits.MaxInterceptedRequestBody))
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		h.Log.Warn("read intercepted request failed", zap.String("url", r.URL.String()), zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	res, err := h.Offline.Resolve(r.Context(), req)
	if err != nil {
		h.Log.Warn("offline resolve failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	resp := res.Response
	hdr := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			hdr.Add(k, v)
		}
	}
	removeHopHeaders(hdr)
	hdr.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	hdr.Set(SourceHeader, string(res.Source))
	w.WriteHeader(resp.Status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		h.Log.Debug("write response body failed", zap.String("url", req.URL), zap.Error(err))
	}
}

func (h *Handler) intercepted(r *http.Request) (*offlinesys.Request, error) {
	target := r.URL.String()
	if !r.URL.IsAbs() {
		target = strings.TrimSuffix(h.Offline.Config().Origin, "/") + r.URL.RequestURI()
	}

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, limits.MaxInterceptedRequestBody+1))
		if err != nil {
			return nil, err
		}
		if len(b) > limits.MaxInterceptedRequestBody {
			return nil, errBodyTooLarge
		}
		body = b
	}

	hdr := r.Header.Clone()
	removeHopHeaders(hdr)

	return &offlinesys.Request{
		Method: r.Method,
		URL:    target,
		Header: hdr,
		Body:   body,
	}, nil
}

func removeHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

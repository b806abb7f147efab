package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/adapter/ghl"
	httpmiddleware "github.com/engageautomations/ghl-api-backend/internal/http/middleware"
	"github.com/engageautomations/ghl-api-backend/internal/service/proxy"
)

// maxProxyBodyBytes caps forwarded request bodies; media uploads are the
// largest expected payloads.
const maxProxyBodyBytes = 8 << 20

// ProxyHandler turns every entry of the proxy endpoint table into a gin
// handler over the one generic forwarder.
type ProxyHandler struct {
	Proxy  proxy.Service
	Logger *zap.Logger
}

// NewProxyHandler creates the proxy handler.
func NewProxyHandler(svc proxy.Service, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{Proxy: svc, Logger: logger}
}

// Handle returns the gin handler for one declared endpoint.
func (h *ProxyHandler) Handle(ep proxy.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		inst, ok := httpmiddleware.GetInstallation(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "installation_not_found",
				"No active installation found. Complete the OAuth installation flow first.", nil)
			return
		}

		var body []byte
		if c.Request.Body != nil {
			payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxProxyBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					respondError(c, http.StatusRequestEntityTooLarge, "payload_too_large",
						"request body exceeds the 8MB proxy limit", nil)
					return
				}
				respondError(c, http.StatusBadRequest, "invalid_body", "failed to read request body", nil)
				return
			}
			body = payload
		}

		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}

		resp, err := h.Proxy.Forward(c.Request.Context(), ep, proxy.ForwardInput{
			Installation: inst,
			PathParams:   params,
			Query:        c.Request.URL.Query(),
			ContentType:  c.ContentType(),
			Body:         body,
		})
		if err != nil {
			respondServiceError(c, err)
			return
		}

		h.relay(c, ep, resp)
	}
}

// relay passes the upstream JSON through: 2xx responses get the success
// wrapper, rejections keep the upstream status with the error envelope.
func (h *ProxyHandler) relay(c *gin.Context, ep proxy.Endpoint, resp *ghl.UpstreamResponse) {
	if resp.OK() {
		respondUpstream(c, resp.StatusCode, resp.Body)
		return
	}
	h.Logger.Warn("relaying upstream error",
		zap.String("endpoint", ep.Name),
		zap.Int("status", resp.StatusCode),
	)
	respondError(c, resp.StatusCode, "upstream_error",
		"The provider rejected the forwarded request.", upstreamDetails(resp.Body))
}

package handler

import (
	"engage/entity"
	"engage/pkg/goutil"
	"engage/pkg/httputil"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

func requestMeta(r *http.Request) *entity.RequestMeta {
	return &entity.RequestMeta{
		UserAgent: r.UserAgent(),
		IP:        httputil.RealIP(r),
	}
}

// NewOpenPixelHandler always answers with the pixel, whatever happened to the open.
func NewOpenPixelHandler(h TrackingHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer servePixel(w)
		defer recoverTracking(r)

		req := &RecordOpenRequest{
			NotificationID: optionalParam(r, "nid"),
		}
		req.SetRequestMeta(requestMeta(r))

		_ = h.RecordOpen(r.Context(), req, new(RecordOpenResponse))
	})
}

// NewClickRedirectHandler always answers with a 302, to the site root if nothing better is known.
func NewClickRedirectHandler(h TrackingHandler, defaultSiteURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := &RecordClickResponse{
			RedirectURL: defaultSiteURL,
		}
		defer func() {
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		}()
		defer recoverTracking(r)

		req := &RecordClickRequest{
			NotificationID: optionalParam(r, "nid"),
			URL:            optionalParam(r, "url"),
		}
		req.SetRequestMeta(requestMeta(r))

		_ = h.RecordClick(r.Context(), req, res)
	})
}

func optionalParam(r *http.Request, key string) *string {
	q := r.URL.Query()
	if !q.Has(key) {
		return nil
	}
	return goutil.String(q.Get(key))
}

func recoverTracking(r *http.Request) {
	if p := recover(); p != nil {
		log.Ctx(r.Context()).Error().Msgf("tracking panic recovered: %v, path: %s", p, r.URL.Path)
	}
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixelGIF)))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(pixelGIF)
}

package router

import (
	"context"
	"engage/entity"
	"engage/pkg/errutil"
	"engage/pkg/httputil"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

const AppBasePath = "/api/v1"

// to decode url params
var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrCannotDecodeUrlParams  = errors.New("cannot decode url params")
)

// ContextInfo is implemented by request structs that want the caller's
// identity and client diagnostics filled in before the handler runs.
type ContextInfo interface {
	SetAuth(auth *entity.AuthContext)
	SetRequestMeta(meta *entity.RequestMeta)
}

type Middleware interface {
	Handle(http.Handler) http.Handler
}

type MiddlewareFunc func(http.Handler) http.Handler

func (f MiddlewareFunc) Handle(next http.Handler) http.Handler {
	return f(next)
}

type Handler struct {
	Req        interface{}
	Res        interface{}
	HandleFunc func(ctx context.Context, req interface{}, res interface{}) error

	reqT  reflect.Type
	respT reflect.Type
}

type HttpRoute struct {
	Method      string
	Path        string
	Handler     Handler
	Middlewares []Middleware
}

// RawRoute serves responses that are not wrapped in the JSON envelope.
type RawRoute struct {
	Method      string
	Path        string
	Handler     http.Handler
	Middlewares []Middleware
}

type HttpRouter struct {
	*mux.Router
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{
		Router: mux.NewRouter(),
	}
}

func (r *HttpRouter) RegisterHttpRoute(hr *HttpRoute) {
	// save req and res type
	hr.Handler.reqT = reflect.TypeOf(hr.Handler.Req).Elem()
	hr.Handler.respT = reflect.TypeOf(hr.Handler.Res).Elem()

	chain := wrap(hr.Handler, hr.Middlewares)

	r.Methods(hr.Method).Path(fmt.Sprintf("%s%s", AppBasePath, hr.Path)).Handler(chain)
}

func (r *HttpRouter) RegisterRawRoute(rr *RawRoute) {
	chain := wrap(rr.Handler, rr.Middlewares)

	r.Methods(rr.Method).Path(fmt.Sprintf("%s%s", AppBasePath, rr.Path)).Handler(chain)
}

func wrap(h http.Handler, middlewares []Middleware) http.Handler {
	chain := h
	// wrap middlewares from right to left
	for i := len(middlewares) - 1; i >= 0; i-- {
		chain = middlewares[i].Handle(chain)
	}
	return chain
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := reflect.New(h.reqT).Interface()
	res := reflect.New(h.respT).Interface()

	if err := decoder.Decode(req, r.URL.Query()); err != nil {
		log.Ctx(ctx).Error().Msgf("decode url query params error: %v", err)
		httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(ErrCannotDecodeUrlParams))
		return
	}

	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		if !hasContentType(r, "application/json") {
			httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(ErrUnsupportedContentType))
			return
		}
		if err := httputil.ReadJsonBody(r, req); err != nil {
			log.Ctx(ctx).Error().Msgf("read json body error: %v", err)
			httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(errors.New("invalid json body")))
			return
		}
	}

	if ci, ok := req.(ContextInfo); ok {
		if auth, ok := GetAuthFromContext(ctx); ok {
			ci.SetAuth(auth)
		}
		ci.SetRequestMeta(&entity.RequestMeta{
			UserAgent: r.UserAgent(),
			IP:        httputil.RealIP(r),
		})
	}

	err := h.HandleFunc(ctx, req, res)
	httputil.ReturnServerResponse(w, res, err)
}

func hasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}
	return false
}

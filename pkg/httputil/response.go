package httputil

import (
	"encoding/json"
	"engage/pkg/errutil"
	"net/http"

	"github.com/rs/zerolog/log"
)

type Response struct {
	Code  int         `json:"code"`
	Error string      `json:"error"`
	Body  interface{} `json:"body"`
}

func ReturnServerResponse(w http.ResponseWriter, res interface{}, resErr error) {
	code, errMsg := errutil.ParseHttpError(resErr)

	resp := &Response{
		Code:  code,
		Error: errMsg,
	}
	if resErr == nil {
		resp.Body = res
	}

	js, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if _, err := w.Write(js); err != nil {
		log.Error().Msgf("fail to return server response, err: %v", err)
	}
}

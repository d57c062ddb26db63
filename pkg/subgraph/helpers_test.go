package subgraph

import (
	"net/http"
	"net/http/httptest"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(handler http.Handler) *HTTPClient {
	return newTestClientWithOpts(handler, Opts{})
}

func newTestClientWithOpts(handler http.Handler, opts Opts) *HTTPClient {
	httpClient := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			resp := rec.Result()
			if resp.Body == nil {
				resp.Body = http.NoBody
			}
			return resp, nil
		}),
		Timeout: 5 * time.Second,
	}

	if len(opts.Endpoints) == 0 {
		opts.Endpoints = []string{"http://mock/subgraphs/name/debase"}
	}
	opts.HTTPClient = httpClient

	return NewHTTPWithOpts(opts)
}

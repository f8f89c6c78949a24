package upload

import (
	"net/http"
	"time"
)

// Doer is the transport used to send PUT requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var UploadHttpTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   50,
	MaxConnsPerHost:       200,
	IdleConnTimeout:       90 * time.Second,
	ResponseHeaderTimeout: 90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 5 * time.Second,
}

// UploadHttpClient has no overall Timeout, large files legitimately take long.
// Stalled transfers are caught by the stall detector instead.
var UploadHttpClient = &http.Client{
	Transport: UploadHttpTransport,
}

package audit

import (
	"errors"
	"time"

	"github.com/FranksOps/appraise/internal/storage"
	"github.com/go-resty/resty/v2"
)

// InstrumentResty records every request made through client as a fetch by
// source.
func (r *Recorder) InstrumentResty(client *resty.Client, source string) {
	if r == nil {
		return
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		rec := &storage.FetchRecord{
			Source:     source,
			URL:        requestURL(res.Request),
			StatusCode: res.StatusCode(),
			Duration:   res.Time(),
			Bytes:      res.Size(),
		}
		if res.IsError() {
			rec.Error = res.Status()
		}
		r.Record(res.Request.Context(), rec)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		// Errors raised after a response arrived were recorded above.
		// Transport failures are wrapped too, but without a raw response.
		var resErr *resty.ResponseError
		if errors.As(err, &resErr) && resErr.Response != nil && resErr.Response.RawResponse != nil {
			return
		}
		r.Record(req.Context(), &storage.FetchRecord{
			Source:   source,
			URL:      requestURL(req),
			Duration: time.Since(req.Time),
			Error:    err.Error(),
		})
	})
}

func requestURL(req *resty.Request) string {
	if req.RawRequest != nil {
		return req.RawRequest.URL.String()
	}
	return req.URL
}

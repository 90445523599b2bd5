package rtdb

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/smsdesk-org/smsdesk/pkg/utils"
)

func (d *RTDB) url(path string) string {
	return "/" + utils.JoinPath(path) + ".json"
}

func (d *RTDB) request(ctx context.Context, method, path string, body any, resp any) error {
	req := d.client.R().SetContext(ctx).ForceContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}
	if resp != nil {
		req.SetResult(resp)
	}
	var e ErrorResp
	req.SetError(&e)
	res, err := req.Execute(method, d.url(path))
	if err != nil {
		return errors.Wrapf(err, "rtdb %s %s", method, path)
	}
	if res.IsError() {
		if e.Error == "" {
			e.Error = res.Status()
		}
		return errors.Errorf("rtdb %s %s: %s", method, path, e.Error)
	}
	return nil
}

// stream holds one event-stream GET open and calls fn for every put or
// patch event until ctx is done or the server closes the stream.
func (d *RTDB) stream(ctx context.Context, path string, fn func(event string, data StreamEvent)) error {
	res, err := d.streamClient.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get(d.url(path))
	if err != nil {
		return errors.Wrap(err, "failed open event stream")
	}
	body := res.RawBody()
	defer body.Close()
	if res.StatusCode() != http.StatusOK {
		return errors.Errorf("event stream %s: %s", path, res.Status())
	}
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var event string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "put", "patch":
				var ev StreamEvent
				if err := utils.Json.UnmarshalFromString(data, &ev); err != nil {
					return errors.Wrap(err, "bad stream event")
				}
				fn(event, ev)
			case "cancel", "auth_revoked":
				return fmt.Errorf("event stream %s: %s", path, event)
			}
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "event stream closed")
	}
	return nil
}

func newClient(base, secret string) *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(utils.Json.Marshal).
		SetJSONUnmarshaler(utils.Json.Unmarshal)
	if secret != "" {
		c.SetQueryParam("auth", secret)
	}
	return c
}

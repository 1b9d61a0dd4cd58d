package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/logging"
)

// nextLink extracts the rel="next" target of a Link header.
var nextLink = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

// platformName labels API errors raised by this package.
const platformName = "github"

// errorBody is the error document returned by REST APIs.
type errorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"errors"`
}

// DecodeResponse decodes a JSON response into the target structure. Any non-2xx
// status becomes an *errors.APIError; a nil target discards the body.
func DecodeResponse(resp *http.Response, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp, body)
	}

	if target == nil || len(body) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

func newAPIError(resp *http.Response, body []byte) *errors.APIError {
	apiErr := &errors.APIError{
		Platform:   platformName,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		if resp.Request.URL != nil {
			apiErr.Endpoint = resp.Request.URL.Path
		}
	}

	var doc errorBody
	if json.Unmarshal(body, &doc) == nil && doc.Message != "" {
		parts := []string{doc.Message}
		for _, e := range doc.Errors {
			if e.Message != "" {
				parts = append(parts, e.Message)
			} else if e.Code != "" {
				parts = append(parts, e.Code)
			}
		}
		apiErr.Message = strings.Join(parts, ": ")
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// NextPage returns the URL of the next page named by the Link header, or "".
func NextPage(resp *http.Response) string {
	for _, header := range resp.Header.Values("Link") {
		if m := nextLink.FindStringSubmatch(header); m != nil {
			return m[1]
		}
	}
	return ""
}

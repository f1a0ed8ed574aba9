package ai

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

const requestTimeout = 90 * time.Second

// restyLogger forwards resty's log output to hclog.
type restyLogger struct {
	logger hclog.Logger
}

func (a *restyLogger) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

func (a *restyLogger) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

func (a *restyLogger) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

func newRestyClient(baseURL string, logger hclog.Logger) *resty.Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return resty.New().
		SetLogger(&restyLogger{logger: logger}).
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Content-Type", "application/json")
}

// apiError is the error body shape shared by the OpenAI and Anthropic APIs.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func responseError(provider string, resp *resty.Response, body *apiError) error {
	if body != nil && body.Error.Message != "" {
		return fmt.Errorf("%s: %s: %s", provider, resp.Status(), body.Error.Message)
	}
	return fmt.Errorf("%s: %s", provider, resp.Status())
}

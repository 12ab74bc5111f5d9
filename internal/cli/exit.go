package cli

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/url"

	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/orchestrator"
	"github.com/kanopusdev/aurelis/internal/task"
)

// Exit codes. Scripting against aurelis relies on these staying stable.
const (
	ExitOK           = 0
	ExitGeneral      = 1
	ExitConfig       = 2
	ExitAuth         = 3
	ExitNetwork      = 4
	ExitFileNotFound = 5
	ExitInvalidInput = 6
	ExitModel        = 7
	ExitTimeout      = 8
)

// ExitError pins an explicit exit code onto an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitErr(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode classifies an error into the documented exit code table.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}

	if errors.Is(err, github.ErrNoToken) || github.IsAuthError(err) {
		return ExitAuth
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ExitFileNotFound
	}
	if errors.Is(err, task.ErrNoInput) || errors.Is(err, orchestrator.ErrInvalidRequest) {
		return ExitInvalidInput
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ExitTimeout
		}
		return ExitNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ExitTimeout
		}
		return ExitNetwork
	}

	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return ExitModel
	}
	if errors.Is(err, orchestrator.ErrExhausted) {
		return ExitModel
	}

	return ExitGeneral
}

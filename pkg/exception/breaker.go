package exception

import "github.com/yanun0323/errors"

var (
	ErrBreakerOpen = errors.New("circuit open")
)

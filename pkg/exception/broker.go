package exception

import "github.com/yanun0323/errors"

var (
	ErrBrokerTransportUnavailable = errors.New("transport unavailable")
)

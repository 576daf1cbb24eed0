package exception

import "github.com/yanun0323/errors"

var (
	ErrStoreNilGorm    = errors.New("nil gorm db")
	ErrStoreBadRequest = errors.New("invalid request")
)

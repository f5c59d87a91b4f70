//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"
	logx "searcharr/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite state driver not built: build with -tags sqlite")
}

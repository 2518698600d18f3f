package model

import (
	"context"
	"io"
)

type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Exists(ctx context.Context, key string) (bool, error)
}

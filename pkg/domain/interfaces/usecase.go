package interfaces

import (
	"context"

	"github.com/m-mizutani/comicdl/pkg/domain/model"
)

// LoginUseCase authenticates the shared session
type LoginUseCase interface {
	// Login blocks until the session is authenticated or a fatal error occurs
	Login(ctx context.Context) error
}

// CrawlerUseCase downloads the configured books
type CrawlerUseCase interface {
	// Run logs in (unless disabled) and downloads every configured book in order
	Run(ctx context.Context) ([]*model.BookResult, error)
}

//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"io/fs"

	"github.com/google/wire"

	"github.com/zeusync/kartking/internal/config"
)

// InitializeApp assembles the application for cfg, reading asset files from fsys.
func InitializeApp(cfg config.Config, fsys fs.FS) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}

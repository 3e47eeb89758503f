// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/larder/internal/adapters/config"
	_ "go.trai.ch/larder/internal/adapters/lockstore"
	_ "go.trai.ch/larder/internal/adapters/logger"
	_ "go.trai.ch/larder/internal/adapters/source"
	// Register app and engine nodes.
	_ "go.trai.ch/larder/internal/app"
	_ "go.trai.ch/larder/internal/engine/lockfile"
	_ "go.trai.ch/larder/internal/engine/resolver"
)

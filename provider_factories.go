package connectors

import (
	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/providers/devkit"
	"github.com/funtoco/go-connectors/providers/hubspot"
	"github.com/funtoco/go-connectors/providers/kintone"
)

func KintoneProvider(cfg kintone.Config) (core.Provider, error) {
	return kintone.New(cfg)
}

func HubSpotProvider(cfg hubspot.Config) (core.Provider, error) {
	return hubspot.New(cfg)
}

// SandboxProvider returns the in-memory provider used for local
// development and wizard demos. It never leaves the process.
func SandboxProvider() *devkit.SandboxProvider {
	return devkit.New()
}

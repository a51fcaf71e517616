package system

import "context"

// Lifecycle provides default no-op Start/Stop/Name handling. Background
// services that have nothing to do on one leg of their lifecycle can embed
// it and override only the methods they need.
type Lifecycle struct{}

func (Lifecycle) Name() string { return "" }

func (Lifecycle) Start(ctx context.Context) error {
	_ = ctx
	return nil
}

func (Lifecycle) Stop(ctx context.Context) error {
	_ = ctx
	return nil
}

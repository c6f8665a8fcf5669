package telemetry

import (
	"context"
	"testing"
)

func TestNewProviders_SetupAndShutdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	providers, err := NewProviders(ctx, "warden-test")
	if err != nil {
		t.Fatalf("new providers: %v", err)
	}
	if providers.Tracer == nil || providers.Meter == nil {
		t.Fatal("expected both providers to be non-nil")
	}

	tracer := Tracer("warden/test")
	_, span := tracer.Start(ctx, "op")
	span.End()

	if err := providers.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

package process

import (
	"context"
	"time"
)

var defaultHandler = New()

// Execute runs setup with the default Handler, see Handler.Execute.
func Execute(setup Setup, timeout time.Duration) (Result, error) {
	return defaultHandler.Execute(setup, timeout)
}

// ExecuteContext runs setup with the default Handler, see Handler.ExecuteContext.
func ExecuteContext(ctx context.Context, setup Setup) (Result, error) {
	return defaultHandler.ExecuteContext(ctx, setup)
}

// ExecuteAsync runs setup with the default Handler, see Handler.ExecuteAsync.
func ExecuteAsync(ctx context.Context, setup Setup) (<-chan Result, error) {
	return defaultHandler.ExecuteAsync(ctx, setup)
}

// ExecuteCommand is Execute for a bare executable and argument string.
func ExecuteCommand(executable, arguments string, timeout time.Duration) (Result, error) {
	return Execute(NewSetup(executable, arguments), timeout)
}

// ExecuteCommandContext is ExecuteContext for a bare executable and argument string.
func ExecuteCommandContext(ctx context.Context, executable, arguments string) (Result, error) {
	return ExecuteContext(ctx, NewSetup(executable, arguments))
}

// ExecuteCommandAsync is ExecuteAsync for a bare executable and argument string.
func ExecuteCommandAsync(ctx context.Context, executable, arguments string) (<-chan Result, error) {
	return ExecuteAsync(ctx, NewSetup(executable, arguments))
}

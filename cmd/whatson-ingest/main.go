package main

import (
	"context"

	"whatson/cmd/whatson-ingest/commands"
	"whatson/internal/components/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}

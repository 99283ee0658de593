// runner Lambda processes one raw batch through to the processed layer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/cardlake/cardlake/internal/lambda"
)

func handleRun(ctx context.Context, d *intlambda.Deps, req intlambda.RunRequest) (intlambda.RunResponse, error) {
	if req.BatchID == "" {
		return intlambda.RunResponse{
			Status: "failed",
			Error:  "no batch ID provided",
		}, nil
	}

	entry, err := d.Coordinator.Run(ctx, req.BatchID)
	if err != nil {
		resp := intlambda.RunResponse{
			BatchID: req.BatchID,
			Status:  "failed",
			Error:   err.Error(),
		}
		if entry != nil {
			resp.AttemptID = entry.AttemptID
			resp.Outcome = entry.Outcome
			resp.Status = string(entry.Status)
		}
		return resp, nil
	}

	return intlambda.RunResponse{
		BatchID:   entry.BatchID,
		AttemptID: entry.AttemptID,
		Status:    string(entry.Status),
		Outcome:   entry.Outcome,
	}, nil
}

func main() {
	ctx := context.Background()
	deps, err := intlambda.Init(ctx)
	if err != nil {
		slog.Error("lambda init failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	awslambda.Start(func(ctx context.Context, req intlambda.RunRequest) (intlambda.RunResponse, error) {
		return handleRun(ctx, deps, req)
	})
}

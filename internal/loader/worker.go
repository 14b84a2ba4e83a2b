// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// WorkerResult is the document a worker process writes to stdout.
type WorkerResult struct {
	Result
	// Error is set when the assembly could not be inspected.
	Error string `json:"error,omitempty"`
}

// RunWorker inspects one assembly and writes a WorkerResult to w. The
// inspection error, if any, is both recorded in the document and returned so
// the worker can exit non-zero.
func RunWorker(ctx context.Context, w io.Writer, inspector Inspector, dir, file string) error {
	res, inspectErr := inspectSafely(ctx, inspector, dir, file)

	out := WorkerResult{Result: res}
	if out.Commands == nil {
		out.Commands = []CommandMetadata{}
	}
	if inspectErr != nil {
		out.Result = Result{Commands: []CommandMetadata{}}
		out.Error = inspectErr.Error()
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		return errors.Join(inspectErr, err)
	}
	return inspectErr
}

// decodeWorkerResult reads the document written by RunWorker.
func decodeWorkerResult(data []byte) (WorkerResult, error) {
	var wr WorkerResult
	if err := json.Unmarshal(data, &wr); err != nil {
		return WorkerResult{}, err
	}
	return wr, nil
}

// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// AssemblyEnvVar names the environment variable holding the absolute path of
// the assembly a script inspector is run for.
const AssemblyEnvVar = "HELPAUDIT_ASSEMBLY"

// ErrEmptyScript is returned when the script inspector has nothing to run.
var ErrEmptyScript = errors.New("inspector script is empty")

// ScriptInspector runs a shell script through the embedded interpreter to
// discover cmdlets. The script runs with the assembly directory as its working
// directory, receives the assembly path as $1 and in HELPAUDIT_ASSEMBLY, and
// prints one JSON object per line: {"name": "Verb-Noun", "type": "Full.Type"}.
type ScriptInspector struct {
	prog        *syntax.File
	outputLimit int
}

// NewScriptInspector parses script once so syntax errors surface before any
// assembly is inspected.
func NewScriptInspector(script string) (*ScriptInspector, error) {
	if strings.TrimSpace(script) == "" {
		return nil, ErrEmptyScript
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "inspector")
	if err != nil {
		return nil, fmt.Errorf("inspector script syntax error: %w", err)
	}
	return &ScriptInspector{prog: prog, outputLimit: maxWorkerOutput}, nil
}

// Inspect implements Inspector.
func (s *ScriptInspector) Inspect(ctx context.Context, dir, file string) (Result, error) {
	path := filepath.Join(dir, file)
	if _, err := os.Stat(path); err != nil {
		return Result{}, err
	}

	stdout, stderr := newCappedBuffer(s.outputLimit), newCappedBuffer(maxWorkerStderr)
	env := append(os.Environ(), AssemblyEnvVar+"="+path)
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.Params("--", path),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, s.prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return Result{}, fmt.Errorf("inspector script exited with status %d: %s", uint8(status), strings.TrimSpace(stderr.String()))
		}
		return Result{}, fmt.Errorf("inspector script: %w", err)
	}

	if stdout.Truncated() {
		return Result{}, outputTooLarge("inspector script output", s.outputLimit)
	}
	return parseScriptOutput(stdout.Bytes()), nil
}

// parseScriptOutput decodes JSON lines. Blank lines are ignored; lines that
// cannot be decoded or lack a name are reported as warnings.
func parseScriptOutput(out []byte) Result {
	res := Result{Commands: []CommandMetadata{}}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var cmd CommandMetadata
		if err := json.Unmarshal([]byte(text), &cmd); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("inspector output line %d: %v", line, err))
			continue
		}
		cmd.CommandName = strings.TrimSpace(cmd.CommandName)
		if cmd.CommandName == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("inspector output line %d: missing name", line))
			continue
		}
		res.Commands = append(res.Commands, cmd)
	}
	if err := sc.Err(); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("inspector output: %v", err))
	}
	return res
}

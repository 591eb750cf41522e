// Copyright 2026 The Meridian Robotics Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// stateFieldPrefix is the fixed key the probe extracts from a status
// sample. The sample is plain "key: value" text, one field per line.
const stateFieldPrefix = "state:"

// Prober performs one bounded readiness query against the status
// channel. Implementations never retry internally; retry policy
// belongs to the caller.
type Prober interface {
	// Probe returns the state field's value from one fresh sample.
	// Failures are ErrProbeTimeout, ErrFieldMissing, or *ProbeError.
	Probe(ctx context.Context) (string, error)
}

// ExecProber queries the status channel by running a command that
// prints one sample ("rostopic echo -n 1 <topic>" in the reference
// configuration) and scanning its output for the state field.
type ExecProber struct {
	// Argv is the full query command line.
	Argv []string

	// Timeout bounds one query.
	Timeout time.Duration

	Logger *slog.Logger
}

// Probe runs one query. A query that exceeds Timeout is reported as
// ErrProbeTimeout; classification of the timeout happens here so the
// readiness loop only ever sees the typed taxonomy.
func (p *ExecProber) Probe(ctx context.Context) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(queryCtx, p.Argv[0], p.Argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// A killed query can leave children holding the output pipes;
	// close them after a grace period so Run cannot block on them.
	cmd.WaitDelay = p.Timeout

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %v", ErrProbeTimeout, p.Timeout)
	}
	if err != nil {
		return "", &ProbeError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}

	sample := stdout.String()
	if p.Logger != nil {
		p.Logger.Debug("status sample retrieved", "sample", truncateSample(sample))
	}

	value, ok := parseStateValue(sample)
	if !ok {
		return "", ErrFieldMissing
	}
	return value, nil
}

// parseStateValue scans sample lines for the state field and returns
// its trimmed value.
func parseStateValue(sample string) (string, bool) {
	for _, line := range strings.Split(sample, "\n") {
		if strings.HasPrefix(line, stateFieldPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, stateFieldPrefix)), true
		}
	}
	return "", false
}

// truncateSample bounds the raw sample text logged at debug level.
func truncateSample(sample string) string {
	const limit = 50
	sample = strings.TrimSpace(sample)
	if len(sample) <= limit {
		return sample
	}
	return sample[:limit] + "..."
}

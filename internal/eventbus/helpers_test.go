// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package eventbus

import (
	"context"

	"github.com/onairhq/showrunner/internal/logging"
)

func contextWithCorrelation(ctx context.Context, id string) context.Context {
	return logging.ContextWithCorrelationID(ctx, id)
}

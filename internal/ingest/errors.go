// Showrunner - Broadcast Rundown Automation
// Copyright 2026 OnAir HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/onairhq/showrunner

package ingest

import "errors"

// ErrRundownUnsynced rejects every ingest update for a rundown frozen
// against ingest; clients must trigger an explicit resync first.
var ErrRundownUnsynced = errors.New("rundown is unsynced; resync required before further ingest")

package state

import (
	"time"

	"github.com/arcadelabs/envctl/internal/procutil"
)

func realIsAlive(pid int) bool { return procutil.IsAlive(pid) }

func unixToTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

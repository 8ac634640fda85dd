package memory

import "runtime/debug"

func debugLimit() int64 { return debug.SetMemoryLimit(-1) }

func restoreLimit(v int64) { debug.SetMemoryLimit(v) }

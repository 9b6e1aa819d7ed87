package logger

import (
	"sync"
	"sync/atomic"
)

type levelCounts struct {
	warns  int64
	errors int64
}

// ComponentCounts is a point-in-time view of warn/error volume for one component.
type ComponentCounts struct {
	Warns  int64 `json:"warns"`
	Errors int64 `json:"errors"`
}

var components sync.Map // map[string]*levelCounts

func countsFor(component string) *levelCounts {
	v, _ := components.LoadOrStore(component, &levelCounts{})
	return v.(*levelCounts)
}

func recordWarn(component string) {
	atomic.AddInt64(&countsFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&countsFor(component).errors, 1)
}

// LevelCounts returns the warn and error totals recorded through Entry.Warn and
// Entry.Error, keyed by the entry's component field.
func LevelCounts() map[string]ComponentCounts {
	out := make(map[string]ComponentCounts)
	components.Range(func(k, v any) bool {
		lc := v.(*levelCounts)
		out[k.(string)] = ComponentCounts{
			Warns:  atomic.LoadInt64(&lc.warns),
			Errors: atomic.LoadInt64(&lc.errors),
		}
		return true
	})
	return out
}

package modkit

import (
	"hitclust/internal/platform/config"
	"hitclust/internal/platform/logger"
	"hitclust/internal/platform/store"
)

// Deps holds core dependencies passed to modules
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	// SQL is the row store for persisted runs, postgres or sqlite; nil when disabled
	SQL store.SQL
	CH  store.Clickhouse
}

// NewDeps picks the module stores out of st, which may be nil
// sqlite wins over postgres when both are configured
func NewDeps(cfg config.Conf, st *store.Store, log *logger.Logger) Deps {
	d := Deps{Cfg: cfg}
	if log != nil {
		d.Log = *log
	}
	if st == nil {
		return d
	}
	switch {
	case st.Lite != nil:
		d.SQL = st.Lite
	case st.PG != nil:
		d.SQL = st.PG
	}
	d.CH = st.CH
	return d
}

// Persistent reports whether any cluster store is wired
func (d Deps) Persistent() bool { return d.SQL != nil || d.CH != nil }

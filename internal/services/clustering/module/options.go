package module

import (
	"os"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/neighbor"
	"hitclust/internal/platform/config"
	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/net/http/bind"
	"hitclust/internal/services/clustering/domain"

	"gopkg.in/yaml.v3"
)

// ParamsFile is the YAML layout of CORE_CLUSTER_PARAMS_FILE; set keys override the environment
type ParamsFile struct {
	Params  *clusterer.Params `yaml:"params" json:"params"`
	Filter  *domain.Filter    `yaml:"filter" json:"filter"`
	Workers int               `yaml:"workers" json:"workers" validate:"gte=0,lte=256"`
	Index   string            `yaml:"index" json:"index" validate:"omitempty,oneof=adaptive linear quad"`
}

// FromConfig reads CORE_CLUSTER_* values and the optional parameter file
func FromConfig(cfg config.Conf) (domain.Options, error) {
	c := cfg.Prefix("CORE_CLUSTER_")
	def := clusterer.DefaultParams()

	strategy, _ := neighbor.ParseStrategy(c.MayEnum("INDEX", "adaptive", "adaptive", "linear", "quad"))
	o := domain.Options{
		Workers: c.MayIntIn("WORKERS", domain.DefaultWorkers, 1, 256),
		Params: clusterer.Params{
			Delay: c.MayFloatMin("DELAY_NS", def.Delay, 0),
			Span:  c.MayFloatMin("SPAN_NS", def.Span, 0),
		},
		Index: neighbor.Policy{
			Strategy:  strategy,
			Threshold: c.MayIntIn("QUAD_THRESHOLD", neighbor.DefaultThreshold, 1, 1<<16),
		},
		FrameSpan:    c.MayFloatMin("FRAME_SPAN", domain.DefaultFrameSpan, 1),
		MaxFrameHits: c.MayIntIn("MAX_FRAME_HITS", domain.DefaultMaxFrameHits, 1, 1<<30),
		IdleCut:      c.MayDuration("IDLE_CUT", domain.DefaultIdleCut),
		QueueDepth:   c.MayIntIn("QUEUE_DEPTH", domain.DefaultQueueDepth, 1, 1024),
		ReadBatch:    c.MayIntIn("READ_BATCH", domain.DefaultReadBatch, 1, 1<<20),
		Filter: domain.Filter{
			Outer:   c.MayIntIn("OUTER_FILTER", 0, 0, 127),
			MinSize: c.MayIntIn("MIN_CLUSTER_SIZE", 0, 0, 1<<20),
			Bigger:  c.MayBool("FILTER_BIGGER", false),
		},
	}
	if p := c.MayFile("PARAMS_FILE"); p != "" {
		if err := ApplyParamsFile(p, &o); err != nil {
			return o, err
		}
	}
	return o, nil
}

// ApplyParamsFile overlays the YAML file at path on o
func ApplyParamsFile(path string, o *domain.Options) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read params file %s", path)
	}
	var f ParamsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "parse params file %s", path)
	}
	// nested pointers are validated when set
	if err := bind.Struct(f); err != nil {
		return err
	}
	if f.Params != nil {
		o.Params = *f.Params
	}
	if f.Filter != nil {
		o.Filter = *f.Filter
	}
	if f.Workers > 0 {
		o.Workers = f.Workers
	}
	if f.Index != "" {
		o.Index.Strategy, _ = neighbor.ParseStrategy(f.Index)
	}
	return nil
}

// storeBatch is the cluster write batch of persisted runs
func storeBatch(cfg config.Conf) int {
	return cfg.Prefix("CORE_CLUSTER_").MayIntIn("STORE_BATCH", 2048, 1, 1<<20)
}

// retain bounds the listed runs
func retain(cfg config.Conf) int {
	return cfg.Prefix("CORE_CLUSTER_").MayIntIn("RUNS_RETAIN", 64, 1, 4096)
}

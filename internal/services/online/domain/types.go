// Package domain defines the modes, commands and parameters of the online service
package domain

import (
	"context"
	"strings"
	"time"

	"hitclust/internal/core/clusterer"
	"hitclust/internal/core/wire"
	clustering "hitclust/internal/services/clustering/domain"
)

// Mode is what the online service sends to its viewers
type Mode string

// Modes
const (
	ModeIdle     Mode = "idle"
	ModeReceive  Mode = "receive"
	ModeClusters Mode = "clusters"
	ModeEnergies Mode = "energies"
	ModeCounts   Mode = "counts"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeIdle, ModeReceive, ModeClusters, ModeEnergies, ModeCounts:
		return true
	}
	return false
}

// Clustering reports whether m runs the clustering engine
func (m Mode) Clustering() bool { return m == ModeClusters || m == ModeEnergies }

// Wire commands carried by K messages
const (
	CmdIdle     = "-IDLE"
	CmdReceive  = "-RECV"
	CmdClusters = "-CLSTR"
	CmdEnergies = "-TOT"
	CmdCounts   = "-PCNT"
	CmdShutdown = "-SHUT"
	CmdHelp     = "-help"
)

var commandModes = map[string]Mode{
	CmdIdle:     ModeIdle,
	CmdReceive:  ModeReceive,
	CmdClusters: ModeClusters,
	CmdEnergies: ModeEnergies,
	CmdCounts:   ModeCounts,
}

// CommandOf returns the wire command that selects m
func CommandOf(m Mode) string {
	for c, mm := range commandModes {
		if mm == m {
			return c
		}
	}
	return ""
}

// ModeOf maps a wire command to its mode
func ModeOf(cmd string) (Mode, bool) {
	m, ok := commandModes[cmd]
	return m, ok
}

// LastCommand picks the command after the final '-' of s, so "-TOT-help-CLSTR" is "-CLSTR"
// it returns "" when s holds no command
func LastCommand(s string) string {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, '-')
	if i < 0 {
		return ""
	}
	return s[i:]
}

// Help lists the wire commands
const Help = "Command descriptions:\n" +
	"'" + CmdReceive + "' - Simple receiver of hits.\n" +
	"'" + CmdEnergies + "' - Get clusters energies.\n" +
	"'" + CmdClusters + "' - Get clusters with all info.\n" +
	"'" + CmdCounts + "' - Get only pixel counts.\n" +
	"'" + CmdIdle + "' - Disable all modes and idle.\n" +
	"'" + CmdShutdown + "' - End the program.\n" +
	"'" + CmdHelp + "' - Display this help message.\n"

// UnknownCommand is the reply to a command the service does not know
const UnknownCommand = "Unknown command! Type help to view commands."

// Feed state messages
const (
	MeasStarted  = "MEAS STARTED"
	MeasFinished = "MEAS FINISHED"
)

// Params are the clustering and filter values a viewer can change at runtime
type Params struct {
	Delay        float64 `json:"delay_ns" validate:"finite,gte=1"`
	Span         float64 `json:"span_ns" validate:"finite,gte=1,lte=100000000"`
	Outer        int     `json:"outer_filter" validate:"gte=0,lte=120"`
	MinSize      int     `json:"min_cluster_size" validate:"gte=0,lte=65000"`
	FilterBigger bool    `json:"filter_bigger"`
}

// Parameter defaults of the online service
const (
	DefaultDelay = 200000
	DefaultSpan  = 200
)

// DefaultParams returns the values used until a viewer configures the service
func DefaultParams() Params { return Params{Delay: DefaultDelay, Span: DefaultSpan} }

// Sanitize resets every out of range value to its default
func (p Params) Sanitize() Params {
	if p.MinSize < 0 || p.MinSize > 65000 {
		p.MinSize = 0
	}
	if !(p.Span >= 1 && p.Span <= 1e8) {
		p.Span = DefaultSpan
	}
	if p.Outer < 0 || p.Outer > 120 {
		p.Outer = 0
	}
	if !(p.Delay >= 1) || p.Delay > 1e300 {
		p.Delay = DefaultDelay
	}
	return p
}

// FromWire converts a V payload
func FromWire(w wire.Params) Params {
	return Params{Delay: w.Delay, Span: w.Span, Outer: w.Outer, MinSize: w.MinSize, FilterBigger: w.FilterBigger}
}

// Wire converts p for a V message
func (p Params) Wire() wire.Params {
	return wire.Params{Delay: p.Delay, Span: p.Span, Outer: p.Outer, MinSize: p.MinSize, FilterBigger: p.FilterBigger}
}

// Clusterer returns the clustering windows
func (p Params) Clusterer() clusterer.Params {
	return clusterer.Params{Delay: p.Delay, Span: p.Span}
}

// Filter returns the post processing filters
func (p Params) Filter() clustering.Filter {
	return clustering.Filter{Outer: p.Outer, MinSize: p.MinSize, Bigger: p.FilterBigger}
}

// ModeRequest selects a mode over HTTP
type ModeRequest struct {
	Mode Mode `json:"mode" validate:"required,oneof=idle receive clusters energies counts"`
}

// Stats is the view of the online service
type Stats struct {
	Mode     Mode      `json:"mode"`
	Params   Params    `json:"params"`
	Feeding  bool      `json:"feeding"`
	Viewers  int       `json:"viewers"`
	Hits     int64     `json:"hits"`
	Clusters int64     `json:"clusters"`
	Sent     int64     `json:"messages_sent"`
	Dropped  int64     `json:"messages_dropped"`
	Since    time.Time `json:"since"`
	// Last is the summary of the most recent clustering session
	Last *clustering.Stats `json:"last_run,omitempty"`
}

// ControlPort is the control surface shared by the wire server and HTTP
type ControlPort interface {
	Mode() Mode
	SetMode(ctx context.Context, m Mode) error
	Params() Params
	SetParams(ctx context.Context, p Params) (Params, error)
	Stats() Stats
}

// Feed is a live hit source owned by one session
type Feed interface {
	clustering.Source
	Close() error
}

// Opener connects a new feed; it is called on every switch to an active mode
type Opener func(ctx context.Context) (Feed, error)

package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/xid"
)

// Collector aggregates every core's CoreStats for a simulation run and
// implements the application-facing outputStatistics(tag) call (§4.6,
// §6 "Persisted state"). Its CSV filename is stamped with a short xid so
// repeated runs against the same output directory never collide (the
// teacher pulls in rs/xid transitively through atexit; this promotes it
// to a direct, visible dependency).
type Collector struct {
	mu    sync.Mutex
	cores []*CoreStats

	tagLogPath string
	tagWriter  *csv.Writer
	tagFile    *os.File
}

// NewCollector creates a Collector whose tag log is written to
// dir/tags-<runid>.csv, with the §6-mandated header already flushed.
func NewCollector(dir string) (*Collector, error) {
	path := fmt.Sprintf("%s/tags-%s.csv", dir, xid.New().String())

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("stats: creating tag log %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"SimTime", "TagName"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("stats: writing tag log header: %w", err)
	}
	w.Flush()

	return &Collector{tagLogPath: path, tagWriter: w, tagFile: f}, nil
}

// Register adds a core's counters to the collector. Called once per core
// at simulator construction.
func (c *Collector) Register(cs *CoreStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cores = append(c.cores, cs)
}

// OutputStatistics is the client-facing outputStatistics(tag) entry point:
// it appends one simulated-time-picosecond -> tag row to the shared CSV
// and flushes it (§4.6). It writes no per-core counter snapshot; the
// counters are only rendered by RenderTable.
func (c *Collector) OutputStatistics(simTimePS uint64, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.tagWriter.Write([]string{fmt.Sprintf("%d", simTimePS), tag}); err != nil {
		return fmt.Errorf("stats: writing tag row: %w", err)
	}
	c.tagWriter.Flush()
	return c.tagWriter.Error()
}

// Close flushes and closes the tag log. Registered with atexit by the
// caller so a fatal abort (§7) still leaves a readable partial log.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tagWriter.Flush()
	return c.tagFile.Close()
}

// TagLogPath returns the path of the CSV this collector is writing to.
func (c *Collector) TagLogPath() string {
	return c.tagLogPath
}

// RenderTable renders a human-readable per-core counter dump, in the
// teacher's go-pretty table style (core.PrintState).
func (c *Collector) RenderTable() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := table.NewWriter()
	t.SetTitle("Per-core statistics")
	t.AppendHeader(table.Row{"PXN", "Pod", "Core (x,y)", "Busy", "Stall"})

	for _, cs := range c.cores {
		busy, stall := cs.Cycles()
		t.AppendRow(table.Row{
			cs.PXN, cs.Pod,
			fmt.Sprintf("(%d,%d)", cs.CoreX, cs.CoreY),
			busy, stall,
		})
	}

	return t.Render()
}

package stats

import (
	"os"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestNewCollectorWritesCSVHeader(t *testing.T) {
	g := NewGomegaWithT(t)

	dir := t.TempDir()
	c, err := NewCollector(dir)
	g.Expect(err).NotTo(HaveOccurred())
	defer c.Close()

	raw, err := os.ReadFile(c.TagLogPath())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(strings.TrimSpace(string(raw))).To(Equal("SimTime,TagName"))
}

func TestOutputStatisticsAppendsRow(t *testing.T) {
	g := NewGomegaWithT(t)

	c, err := NewCollector(t.TempDir())
	g.Expect(err).NotTo(HaveOccurred())
	defer c.Close()

	g.Expect(c.OutputStatistics(5000, "phase1")).To(Succeed())
	c.Close()

	raw, err := os.ReadFile(c.TagLogPath())
	g.Expect(err).NotTo(HaveOccurred())

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	g.Expect(lines).To(HaveLen(2))
	g.Expect(lines[1]).To(Equal("5000,phase1"))
}

func TestRenderTableIncludesRegisteredCores(t *testing.T) {
	g := NewGomegaWithT(t)

	c, err := NewCollector(t.TempDir())
	g.Expect(err).NotTo(HaveOccurred())
	defer c.Close()

	cs := NewCoreStats(0, 1, 2, 3, 1)
	cs.RecordBusyCycle()
	c.Register(cs)

	out := c.RenderTable()
	g.Expect(out).To(ContainSubstring("(2,3)"))
	g.Expect(out).To(ContainSubstring("Per-core statistics"))
}

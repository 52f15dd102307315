package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/checker"
)

type progressPrinter struct {
	out       io.Writer
	total     int
	name      string
	mu        sync.Mutex
	passed    int
	findings  int
	fatal     int
	cancelled int
	duration  time.Duration
	updates   chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	writeMu   sync.Mutex
}

// newProgressPrinter starts with an empty total; each target adds its
// applicable checks through Plan.
func newProgressPrinter(out io.Writer, name string) *progressPrinter {
	return &progressPrinter{
		out:     out,
		name:    name,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

// Plan is a checker.PlanFunc.
func (p *progressPrinter) Plan(_ checker.Target, checks int) {
	p.mu.Lock()
	p.total += checks
	p.mu.Unlock()
}

// Record is a checker.OutcomeFunc.
func (p *progressPrinter) Record(out checker.Outcome) {
	p.mu.Lock()
	switch out.Kind {
	case checker.OutcomePassed:
		p.passed++
	case checker.OutcomeFailedWithIssues:
		p.findings++
	case checker.OutcomeFatalError:
		p.fatal++
	case checker.OutcomeCancelled:
		p.cancelled++
	}
	p.duration += out.Duration
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.write(fmt.Sprintf("\r%s\r%s\n", strings.Repeat(" ", 80), p.line()))
	})
}

func (p *progressPrinter) loop() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) line() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	completed := p.passed + p.findings + p.fatal + p.cancelled
	if completed > p.total {
		p.total = completed
	}
	percent := 0.0
	if p.total > 0 {
		percent = float64(completed) / float64(p.total) * 100
	}
	avg := 0.0
	if completed > 0 {
		avg = p.duration.Seconds() / float64(completed)
	}
	return fmt.Sprintf("[%s] Progress: %d/%d (%.1f%%) Passed:%d Findings:%d Fatal:%d Cancelled:%d Avg:%.2fs",
		p.name, completed, p.total, percent, p.passed, p.findings, p.fatal, p.cancelled, avg)
}

func (p *progressPrinter) print() {
	p.write("\r" + p.line())
}

func (p *progressPrinter) write(s string) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, _ = io.WriteString(p.out, s)
}

// Package runner evaluates rules against a host and builds the run report.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/girste/hardenspec/internal/config"
	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner coordinates a compliance run
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a runner for the given configuration
func New(cfg *config.Config) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// WithLogger replaces the run-level logger
func (r *Runner) WithLogger(logger *zap.Logger) *Runner {
	r.logger = logger
	return r
}

// Run evaluates every rule against h and returns the report. Rule failures
// and errors are outcomes, not errors; Run only fails when the context is
// cancelled before any rule could start.
func (r *Runner) Run(ctx context.Context, h *host.Host, ruleSet []rules.Rule) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Target:    r.cfg.Target.String(),
		Transport: h.TransportName(),
		StartedAt: time.Now().UTC(),
	}

	facts, err := h.Facts(ctx)
	if err != nil {
		r.logger.Warn("Could not gather host facts", zap.Error(err))
	}
	if r.cfg.Output.MaskHostname && facts.Hostname != "" {
		facts.Hostname = util.MaskHostname(facts.Hostname)
	}
	report.Host = facts

	r.logger.Info("Starting run",
		zap.String("run", report.RunID),
		zap.String("target", report.Target),
		zap.Int("rules", len(ruleSet)),
		zap.Int("concurrency", r.cfg.GetMaxConcurrency()))

	report.Outcomes = r.evaluateAll(ctx, h, ruleSet)
	report.FinishedAt = time.Now().UTC()
	report.Summary, report.Domains = summarize(report.Outcomes)
	report.Stats = h.Stats()

	r.logger.Info("Run completed",
		zap.String("run", report.RunID),
		zap.Int("pass", report.Summary.Passed),
		zap.Int("fail", report.Summary.Failed),
		zap.Int("error", report.Summary.Errored),
		zap.Int("skip", report.Summary.Skipped),
		zap.Duration("duration", report.Duration()))

	return report, nil
}

// evaluateAll runs the rules with bounded parallelism. Outcomes are stored
// by catalogue index so the report order never depends on scheduling.
func (r *Runner) evaluateAll(ctx context.Context, h *host.Host, ruleSet []rules.Rule) []rules.Outcome {
	outcomes := make([]rules.Outcome, len(ruleSet))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.cfg.GetMaxConcurrency())

	for i, rule := range ruleSet {
		wg.Add(1)
		go func(i int, rule rules.Rule) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[i] = r.Evaluate(ctx, h, rule)
		}(i, rule)
	}

	wg.Wait()
	return outcomes
}

// Evaluate produces the outcome of a single rule, applying exceptions,
// skip markers and the per-rule timeout. A panicking check is an ERROR.
func (r *Runner) Evaluate(ctx context.Context, h *host.Host, rule rules.Rule) (out rules.Outcome) {
	out = rules.Outcome{
		RuleID:      rule.ID,
		Domain:      rule.Domain,
		Description: rule.Description,
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Rule panicked",
				zap.String("rule", rule.ID),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			out.Status = rules.StatusError
			out.Message = fmt.Sprintf("check panicked: %v", p)
		}
		out.Duration = time.Since(start)
	}()

	if exc, ok := r.cfg.ExceptionFor(rule.ID); ok {
		out.Status = rules.StatusSkip
		out.Message = "excepted: " + exc.Reason
		return out
	}
	if rule.SkipReason != "" && !r.cfg.IsForced(rule.ID) {
		out.Status = rules.StatusSkip
		out.Message = rule.SkipReason
		return out
	}

	ruleCtx, cancel := context.WithTimeout(ctx, r.cfg.RuleTimeout())
	defer cancel()

	status, msg, err := rule.Check(ruleCtx, h)
	if err != nil {
		r.logger.Warn("Rule could not be evaluated", zap.String("rule", rule.ID), zap.Error(err))
		status = rules.StatusError
		msg = err.Error()
	}
	out.Status = status
	out.Message = msg

	r.logger.Debug("Rule evaluated",
		zap.String("rule", rule.ID),
		zap.String("status", string(status)),
		zap.Duration("duration", time.Since(start)))
	return out
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/metrics"
	"tank_edge/internal/models"
	"tank_edge/internal/repository"
	"tank_edge/internal/source"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = "15:04"
)

// RuleFetcher is the configuration API side of the actuator schedule.
type RuleFetcher interface {
	FetchConfigRules(ctx context.Context) ([]models.ConfigRule, error)
}

// ActuatorService sends scheduled commands to the device. Each rule fires
// at most once per day and minute.
type ActuatorService struct {
	fetcher RuleFetcher
	store   repository.SnapshotStore[models.ConfigRule]
	sink    source.CommandWriter
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu    sync.Mutex
	rules []models.ConfigRule
	sent  map[string]string // dedupe key -> day
}

func NewActuatorService(fetcher RuleFetcher, store repository.SnapshotStore[models.ConfigRule], sink source.CommandWriter, timeout time.Duration, log *logger.Logger) *ActuatorService {
	rules, err := store.Load()
	if err != nil {
		log.Errorw("user_configs_unreadable", "err", err)
		rules = nil
	}
	return &ActuatorService{
		fetcher: fetcher,
		store:   store,
		sink:    sink,
		timeout: timeout,
		log:     log,
		now:     time.Now,
		rules:   rules,
		sent:    make(map[string]string),
	}
}

// Refresh replaces the rule set. An empty answer keeps the current rules.
func (a *ActuatorService) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rules, err := a.fetcher.FetchConfigRules(ctx)
	if err != nil {
		a.log.Warnw("user_configs_refresh_failed", "err", err)
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	if err := a.store.Save(rules); err != nil {
		a.log.Errorw("user_configs_persist_failed", "err", err)
		return fmt.Errorf("persist user configs: %w", err)
	}

	a.mu.Lock()
	a.rules = rules
	a.mu.Unlock()
	a.log.Infow("user_configs_refreshed", "rules", len(rules))
	return nil
}

// Execute sends every rule due at the current minute and returns how many
// commands were written.
func (a *ActuatorService) Execute() int {
	now := a.now()
	today := now.Format(dayLayout)
	minute := now.Format(timeLayout)

	a.mu.Lock()
	defer a.mu.Unlock()

	for key, day := range a.sent {
		if day != today {
			delete(a.sent, key)
		}
	}

	sent := 0
	for _, r := range a.rules {
		at, ok := ruleTime(r.ConfigValue)
		if !ok || at != minute {
			continue
		}
		if r.ConfigDay != "" && r.ConfigDay != today {
			continue
		}

		key := r.Code + "_" + today + "_" + at
		if _, done := a.sent[key]; done {
			continue
		}
		if err := a.sink.WriteCommand(r.Code); err != nil {
			metrics.CommandsForwarded.WithLabelValues("schedule", "error").Inc()
			a.log.Errorw("command_forward_failed", "source", "schedule", "command", r.Code, "err", err)
			continue
		}
		a.sent[key] = today
		sent++
		metrics.CommandsForwarded.WithLabelValues("schedule", "ok").Inc()
		a.log.Infow("command_forwarded", "source", "schedule", "command", r.Code, "day", today, "time", at)
	}
	return sent
}

// Rules returns a copy of the active rule set.
func (a *ActuatorService) Rules() []models.ConfigRule {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.ConfigRule, len(a.rules))
	copy(out, a.rules)
	return out
}

// Run polls the configuration API every pollPeriod and checks the schedule
// every checkPeriod until ctx is done.
func (a *ActuatorService) Run(ctx context.Context, pollPeriod, checkPeriod time.Duration) {
	_ = a.Refresh(ctx)
	a.Execute()

	poll := time.NewTicker(pollPeriod)
	defer poll.Stop()
	check := time.NewTicker(checkPeriod)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			_ = a.Refresh(ctx)
		case <-check.C:
			a.Execute()
		}
	}
}

// ruleTime normalizes "HH:MM" or an ISO timestamp to "HH:MM".
func ruleTime(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if !strings.Contains(v, "T") && len(v) <= 5 {
		t, err := time.Parse(timeLayout, v)
		if err != nil {
			return "", false
		}
		return t.Format(timeLayout), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(timeLayout), true
		}
	}
	return "", false
}

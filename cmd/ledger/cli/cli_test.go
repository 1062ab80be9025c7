package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type stubEnqueuer struct {
	integrity []jobs.IntegrityPayload
	translate []jobs.TranslatePayload
	closes    []jobs.ClosePayload
}

func (s *stubEnqueuer) EnqueueIntegrity(_ context.Context, p jobs.IntegrityPayload) (*asynq.TaskInfo, error) {
	s.integrity = append(s.integrity, p)
	return &asynq.TaskInfo{ID: "integrity-1", Type: jobs.TaskLedgerIntegrity, Queue: jobs.QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueTranslate(_ context.Context, p jobs.TranslatePayload) (*asynq.TaskInfo, error) {
	s.translate = append(s.translate, p)
	return &asynq.TaskInfo{ID: "translate-1", Type: jobs.TaskLedgerTranslate, Queue: jobs.QueueCritical}, nil
}

func (s *stubEnqueuer) EnqueueClose(_ context.Context, p jobs.ClosePayload) (*asynq.TaskInfo, error) {
	s.closes = append(s.closes, p)
	return &asynq.TaskInfo{ID: "close-1", Type: jobs.TaskLedgerClose, Queue: jobs.QueueCritical}, nil
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

type harness struct {
	f        *lt.Fixture
	enqueuer *stubEnqueuer
	queues   stubInspector
	closed   bool
}

func newHarness(t *testing.T) *harness {
	return &harness{f: lt.New(t), enqueuer: &stubEnqueuer{}, queues: stubInspector{}}
}

func (h *harness) connect(context.Context, *app.Config, *slog.Logger) (*Session, error) {
	return &Session{
		Ledger:   h.f.Service,
		Enqueuer: h.enqueuer,
		Queues:   h.queues,
		Close:    func() { h.closed = true },
	}, nil
}

func (h *harness) run(args ...string) (string, error) {
	root := NewRootCommand(h.connect)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func entityFlag(f *lt.Fixture) string {
	return "--entity=" + jsonNumber(f.Entity.ID)
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestIntegrityCommand(t *testing.T) {
	h := newHarness(t)
	bank := h.f.Account(accounting.AccountTypeBank)
	revenue := h.f.Account(accounting.AccountTypeOperatingRevenue)
	h.f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "120"))

	out, err := h.run("integrity", "--json")
	require.NoError(t, err)
	assert.True(t, h.closed)
	var results []IntegrityResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Equal(t, 1, results[0].Transactions)

	rows := h.f.Store.LedgerRows()
	h.f.Store.Tamper(rows[0].ID, rows[0].Amount.Add(lt.D("5")))
	out, err = h.run("integrity", entityFlag(h.f))
	require.ErrorIs(t, err, ErrFindings)
	assert.Equal(t, 10, ExitCode(err))
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "hash chain broken")
}

func TestEnqueueCommands(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("translate", entityFlag(h.f), "--year=2025", "--forex-account=9", "--enqueue", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"translate-1","type":"ledger:translate","queue":"critical"}`, out)
	require.Len(t, h.enqueuer.translate, 1)
	assert.Equal(t, jobs.TranslatePayload{EntityID: h.f.Entity.ID, Year: 2025, ForexAccountID: 9}, h.enqueuer.translate[0])

	out, err = h.run("close", entityFlag(h.f), "--year=2025", "--retained-account=4", "--enqueue")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued ledger:close on critical")
	require.Len(t, h.enqueuer.closes, 1)
	require.NotNil(t, h.enqueuer.closes[0].RetainedEarningsAccountID)
	assert.Equal(t, int64(4), *h.enqueuer.closes[0].RetainedEarningsAccountID)

	_, err = h.run("integrity", "--enqueue")
	require.NoError(t, err)
	assert.Equal(t, []jobs.IntegrityPayload{{}}, h.enqueuer.integrity)
}

func TestCommandFlagValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("translate", entityFlag(h.f))
	require.ErrorContains(t, err, "--forex-account is required")

	_, err = h.run("close")
	require.ErrorContains(t, err, "--entity is required")

	_, err = h.run("report", "trial-balance", entityFlag(h.f), "--end=31/12/2025")
	require.ErrorContains(t, err, "expected YYYY-MM-DD")
	assert.Equal(t, 1, ExitCode(err))
}

func TestCloseCommandRunsInline(t *testing.T) {
	h := newHarness(t)
	bank := h.f.Account(accounting.AccountTypeBank)
	retained := h.f.Account(accounting.AccountTypeEquity)
	revenue := h.f.Account(accounting.AccountTypeOperatingRevenue)
	h.f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "75"))

	_, err := h.run("close", entityFlag(h.f), "--year=2025", "--retained-account="+jsonNumber(retained.ID))
	require.ErrorIs(t, err, accounting.ErrInvalidPeriodTransition)

	period, err := h.f.Service.Period(h.f.Ctx, h.f.Scope, 2025)
	require.NoError(t, err)
	_, err = h.f.Service.SetPeriodStatus(h.f.Ctx, h.f.Scope, period.ID, accounting.PeriodStatusAdjusting)
	require.NoError(t, err)

	out, err := h.run("close", entityFlag(h.f), "--year=2025", "--retained-account="+jsonNumber(retained.ID), "--json")
	require.NoError(t, err)
	var closed ClosedPeriod
	require.NoError(t, json.Unmarshal([]byte(out), &closed))
	assert.Equal(t, ClosedPeriod{PeriodID: period.ID, Year: 2025, Status: accounting.PeriodStatusClosed}, closed)

	carried, err := h.f.Service.ListBalances(h.f.Ctx, h.f.Scope, bank.ID, 2026)
	require.NoError(t, err)
	require.Len(t, carried, 1)
	assert.True(t, lt.D("75").Equal(carried[0].Amount))
}

func TestQueueCommand(t *testing.T) {
	h := newHarness(t)
	h.queues[jobs.QueueCritical] = &asynq.QueueInfo{Queue: jobs.QueueCritical, Pending: 2, Failed: 1}

	out, err := h.run("queue", "--json")
	require.NoError(t, err)
	var stats []QueueStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, []QueueStats{
		{Queue: jobs.QueueCritical, Pending: 2, Failed: 1},
		{Queue: jobs.QueueDefault},
	}, stats)
}

func TestQueueCommandPropagatesInspectorErrors(t *testing.T) {
	_, err := inspectQueues(failingInspector{})
	require.ErrorContains(t, err, "inspect critical")
}

type failingInspector struct{}

func (failingInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return nil, errors.New("redis down")
}

func TestTrialBalanceReport(t *testing.T) {
	h := newHarness(t)
	bank := h.f.Account(accounting.AccountTypeBank)
	revenue := h.f.Account(accounting.AccountTypeOperatingRevenue)
	h.f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "120"))

	out, err := h.run("report", "trial-balance", entityFlag(h.f), "--end=2025-06-30")
	require.NoError(t, err)
	assert.Contains(t, out, "BANK account")
	assert.Contains(t, out, "120.00")
	assert.NotContains(t, out, "does not balance")

	out, err = h.run("report", "cash-flow", entityFlag(h.f), "--start=2025-01-01", "--end=2025-06-30")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
	assert.Contains(t, out, `"NetCashFlow": "120"`)
}

func TestSettingsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.toml")
	require.NoError(t, os.WriteFile(path, []byte("forex_scale = 6\n[accounts]\nreceivable = \"Debtors\"\n"), 0o600))
	t.Setenv("LEDGER_SETTINGS_FILE", path)

	h := newHarness(t)
	out, err := h.run("settings")
	require.NoError(t, err)
	assert.Contains(t, out, "forex scale: 6")
	assert.Contains(t, out, "Debtors")
	assert.False(t, h.closed, "settings does not connect")

	t.Setenv("LEDGER_FOREX_SCALE", "3")
	out, err = h.run("settings", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"ForexScale": 3`)
}

package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

type fakeStore struct {
	failOn    map[string]error
	confirmed []string
	restored  []string
	mu        sync.Mutex
}

func (s *fakeStore) ConfirmDuplicate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[id]; err != nil {
		return err
	}
	s.confirmed = append(s.confirmed, id)
	return nil
}

func (s *fakeStore) RestoreDuplicate(_ context.Context, id string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[id]; err != nil {
		return nil, err
	}
	s.restored = append(s.restored, id)
	return &model.Transaction{ID: id}, nil
}

func testRecords() []model.DuplicateRecord {
	mk := func(id, desc, matched string) model.DuplicateRecord {
		return model.DuplicateRecord{
			ID:                 id,
			RunID:              "run-1",
			MatchedDescription: matched,
			Status:             model.ReviewPending,
			Tier:               model.TierDeterministic,
			Confidence:         0.93,
			Transaction: model.Transaction{
				Description: desc,
				Date:        "2025-01-15",
				Amount:      decimal.RequireFromString("-22.77"),
				Source:      model.SourceCSV,
			},
		}
	}
	return []model.DuplicateRecord{
		mk("dup-1", "AplPay BURRITO BARN", "Burrito Barn"),
		mk("dup-2", "AWS", "Amazon Web Services"),
		mk("dup-3", "RIDESHARE", "Rideshare"),
	}
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// press sends a key and runs any resulting command to completion.
func press(t *testing.T, m Model, r rune) Model {
	t.Helper()
	next, cmd := m.Update(keyPress(r))
	m = next.(Model)
	if cmd == nil {
		return m
	}
	msg := cmd()
	if _, ok := msg.(decisionMsg); !ok {
		return m
	}
	next, _ = m.Update(msg)
	return next.(Model)
}

func TestModelDecisions(t *testing.T) {
	store := &fakeStore{}
	m := NewModel(context.Background(), store, testRecords())

	m = press(t, m, 'c')
	m = press(t, m, 's')
	m = press(t, m, 'r')

	assert.Equal(t, []string{"dup-1"}, store.confirmed)
	assert.Equal(t, []string{"dup-3"}, store.restored)

	records := m.Records()
	assert.Equal(t, model.ReviewConfirmed, records[0].Status)
	assert.Equal(t, model.ReviewPending, records[1].Status)
	assert.Equal(t, model.ReviewRestored, records[2].Status)

	summary := m.Summary()
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, summary.Restored)
	assert.Equal(t, 1, summary.Skipped)
}

func TestModelRestoreAfterConfirm(t *testing.T) {
	store := &fakeStore{}
	m := NewModel(context.Background(), store, testRecords()[:1])

	m = press(t, m, 'c')
	m = press(t, m, 'r')

	assert.Equal(t, []string{"dup-1"}, store.confirmed)
	assert.Equal(t, []string{"dup-1"}, store.restored)
	summary := m.Summary()
	assert.Equal(t, 0, summary.Confirmed)
	assert.Equal(t, 1, summary.Restored)
}

func TestModelRejectsRepeatDecisions(t *testing.T) {
	store := &fakeStore{}
	m := NewModel(context.Background(), store, testRecords()[:1])

	m = press(t, m, 'r')
	m = press(t, m, 'r')
	m = press(t, m, 'c')

	assert.Equal(t, []string{"dup-1"}, store.restored)
	assert.Empty(t, store.confirmed)
	assert.Contains(t, m.View(), "Already restored")
}

func TestModelStoreError(t *testing.T) {
	store := &fakeStore{failOn: map[string]error{"dup-1": errors.New("database is locked")}}
	m := NewModel(context.Background(), store, testRecords())

	m = press(t, m, 'c')

	assert.Equal(t, model.ReviewPending, m.Records()[0].Status)
	assert.Equal(t, 0, m.table.Cursor())
	assert.Contains(t, m.View(), "database is locked")
	assert.Equal(t, 3, m.Summary().Skipped)
}

func TestModelQuitAndHelp(t *testing.T) {
	m := NewModel(context.Background(), &fakeStore{}, testRecords())

	next, _ := m.Update(keyPress('?'))
	m = next.(Model)
	assert.True(t, m.help.ShowAll)

	_, cmd := m.Update(keyPress('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelView(t *testing.T) {
	t.Run("lists records and details", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeStore{}, testRecords())
		view := m.View()
		assert.Contains(t, view, "Review duplicates (3)")
		assert.Contains(t, view, "Burrito Barn")
		assert.Contains(t, view, "run run-1")
	})

	t.Run("empty", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeStore{}, nil)
		assert.Contains(t, m.View(), "Nothing to review")
		next, cmd := m.Update(keyPress('c'))
		assert.Nil(t, cmd)
		assert.Empty(t, next.(Model).Records())
	})
}

func TestRunRequiresStore(t *testing.T) {
	_, err := Run(context.Background(), nil, testRecords())
	require.Error(t, err)
}

package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/jobsync/internal/model"
)

// MockStore is an in-memory tracker sheet for testing.
type MockStore struct {
	FetchErr    error
	UpdateFunc  func(position int, record model.Application) error
	AppendFunc  func(record model.Application) error
	Columns     []string
	rows        [][]string
	UpdateCalls []UpdateCall
	AppendCalls []model.Application
	FetchCount  int
	mu          sync.Mutex
}

// UpdateCall represents a single call to UpdateRow.
type UpdateCall struct {
	Record   model.Application
	Position int
}

// NewMockStore creates a mock sheet with the given header and data rows.
func NewMockStore(columns []string, rows ...[]string) *MockStore {
	m := &MockStore{Columns: columns}
	for _, row := range rows {
		m.rows = append(m.rows, pad(row, len(columns)))
	}
	return m
}

// FetchRows implements the destination read.
func (m *MockStore) FetchRows(_ context.Context) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCount++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	rows := make([]Row, 0, len(m.rows))
	for idx, values := range m.rows {
		cells := make(map[string]string, len(m.Columns))
		for i, name := range m.Columns {
			cells[name] = values[i]
		}
		rows = append(rows, Row{Position: idx + 1, Cells: cells})
	}
	return rows, nil
}

// UpdateRow implements the destination update.
func (m *MockStore) UpdateRow(_ context.Context, position int, record model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{Position: position, Record: record})
	if m.UpdateFunc != nil {
		if err := m.UpdateFunc(position, record); err != nil {
			return err
		}
	}
	if position < 1 || position > len(m.rows) {
		return fmt.Errorf("row %d out of range", position)
	}
	m.rows[position-1] = m.cells(record)
	return nil
}

// AppendRow implements the destination append.
func (m *MockStore) AppendRow(_ context.Context, record model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls = append(m.AppendCalls, record)
	if m.AppendFunc != nil {
		if err := m.AppendFunc(record); err != nil {
			return err
		}
	}
	m.rows = append(m.rows, m.cells(record))
	return nil
}

// Rows returns a copy of the current sheet contents.
func (m *MockStore) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]string, len(m.rows))
	for i, row := range m.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func (m *MockStore) cells(record model.Application) []string {
	values := record.Values()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return pad(out, len(m.Columns))
}

func pad(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

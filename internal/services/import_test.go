package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerdash/internal/core"
	"ledgerdash/internal/store/memory"
)

const ledgerCSV = `Tipo,Categoría,Subcategoría,Item,Monto,Fecha
Gasto,Materiales,Cemento,Sacos,150000,2024-01-10
Ingreso,Ventas,Depto,Pie,900000,2024-01-15
Otro,Materiales,Cemento,Sacos,10,2024-01-10
Gasto,Materiales,Cemento,Sacos,abc,2024-01-10
`

func TestLedgerServiceImportEntries(t *testing.T) {
	st := memory.New()
	pub := &fakePublisher{}
	inv := &countingInvalidator{}
	svc := NewLedgerService(st, inv, pub, nil, nil)

	res, err := svc.Import(context.Background(), "transactions", "ledger.csv", strings.NewReader(ledgerCSV))
	require.NoError(t, err)
	assert.Equal(t, "transactions", res.Target)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, res.IDs, 2)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, core.SkipUnrecognizedKind, res.Skipped[0].Reason)
	assert.Equal(t, 4, res.Skipped[0].Row)
	assert.Equal(t, core.SkipInvalidAmount, res.Skipped[1].Reason)

	stored, err := st.ListEntries(context.Background(), core.Actual)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	assert.Equal(t, 1, inv.calls)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, 2, pub.msgs[0].Imported)
	assert.Equal(t, 2, pub.msgs[0].Skipped)
}

func TestLedgerServiceImportIntoBudget(t *testing.T) {
	st := memory.New()
	svc := NewLedgerService(st, nil, nil, nil, nil)

	_, err := svc.Import(context.Background(), "budget", "plan.csv", strings.NewReader(ledgerCSV))
	require.NoError(t, err)

	budget, err := st.ListEntries(context.Background(), core.Budget)
	require.NoError(t, err)
	assert.Len(t, budget, 2)
	actual, err := st.ListEntries(context.Background(), core.Actual)
	require.NoError(t, err)
	assert.Empty(t, actual)
}

func TestLedgerServiceImportIndex(t *testing.T) {
	st := memory.New()
	svc := NewLedgerService(st, nil, nil, nil, nil)
	csv := "Año;Mes;Valor\n2024;1;36500,25\n2024;13;1\n"

	res, err := svc.Import(context.Background(), TargetIndex, "uf.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Rows)
	require.Len(t, res.Skipped, 1)

	values, err := st.ListIndexValues(context.Background())
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "36500.25", values[0].Value.String())
}

func TestLedgerServiceImportErrors(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Import(ctx, "transactions", "ledger.pdf", strings.NewReader(ledgerCSV))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.Import(ctx, "savings", "ledger.csv", strings.NewReader(ledgerCSV))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = svc.Import(ctx, "transactions", "ledger.csv", strings.NewReader("Tipo,Monto\nGasto,1\n"))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLedgerServicePublishFailureDoesNotFailImport(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewLedgerService(memory.New(), nil, pub, nil, nil)

	res, err := svc.Import(context.Background(), "transactions", "ledger.csv", strings.NewReader(ledgerCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, pub.msgs, 1)
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

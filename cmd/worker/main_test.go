package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-insights/internal/app"
	_ "github.com/odyssey-erp/invoice-insights/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}

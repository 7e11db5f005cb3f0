package main

import (
	"context"
	"testing"

	"portal/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessReport(t *testing.T) {
	user, rows, err := accessReport(context.Background(), store.DefaultSeed(), "john@apollo.com")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", user.Name)

	decisions := map[string]string{}
	for _, row := range rows {
		decisions[row[0]] = row[2]
	}
	assert.Equal(t, map[string]string{"1": "open", "2": "open", "3": "restricted", "4": "restricted"}, decisions)
}

func TestAccessReportUnknownEmail(t *testing.T) {
	_, _, err := accessReport(context.Background(), store.DefaultSeed(), "ghost@apollo.com")
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["access"])
}

// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/nftqcd/lgt/pkg/hmc"
	"github.com/nftqcd/lgt/pkg/measure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestContext() *context.Context {
	ctx := context.New()
	ctx.SetParam("x", 11.0)
	ctx.SetParam("y", 7)
	ctx.SetParam("z", false)
	ctx.SetParam("s", "foo")
	ctx.SetParam("list_int", []int{})
	ctx.SetParam("list_float", []float64{})
	ctx.SetParam("list_str", []string{})
	return ctx
}

func TestParseSettings(t *testing.T) {
	ctx := createTestContext()

	paramsSet, err := ParseSettings(ctx, "x=13;/a/z=true;/a/b/y=3_000;s=bar;list_int=1,3,7;list_float=0.1,1.2,3e3;list_str=a,b;")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "/a/z", "/a/b/y", "s", "list_int", "list_float", "list_str"}, paramsSet)
	assert.Equal(t, 13.0, context.GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, 7, context.GetParamOr(ctx, "y", 0))
	assert.Equal(t, 7, context.GetParamOr(ctx.In("a"), "y", 0))
	assert.Equal(t, 3000, context.GetParamOr(ctx.In("a").In("b"), "y", 0))
	assert.False(t, context.GetParamOr(ctx, "z", true))
	assert.True(t, context.GetParamOr(ctx.In("a"), "z", false))
	assert.Equal(t, "bar", context.GetParamOr(ctx, "s", ""))
	assert.Equal(t, []int{1, 3, 7}, context.GetParamOr(ctx, "list_int", []int{}))
	assert.Equal(t, []float64{0.1, 1.2, 3e3}, context.GetParamOr(ctx, "list_float", []float64{}))
	assert.Equal(t, []string{"a", "b"}, context.GetParamOr(ctx, "list_str", []string{}))

	modified := SprintModifiedSettings(ctx, append(paramsSet, "x"))
	assert.Contains(t, modified, `"/a/b/y": (int) 3000`)
	assert.Contains(t, SprintSettings(ctx), `"/x": (float64) 13`)

	for _, invalid := range []string{
		"q=3",      // Unknown parameter.
		"y=3.14",   // Wrong type.
		"a/abc=3",  // Scope not absolute.
		"x",        // Missing value.
		"x=1=2",    // Too many "=".
		"list_int=1,a",
	} {
		_, err = ParseSettings(ctx, invalid)
		require.Errorf(t, err, "setting %q should fail", invalid)
	}

	// Parameter "q" is only known in a sub-scope.
	ctx.In("c").SetParam("q", 13)
	_, err = ParseSettings(ctx, "q=3")
	require.Error(t, err)
}

func TestParseSettingsFile(t *testing.T) {
	ctx := hmc.CreateDefaultContext()
	filePath := filepath.Join(t.TempDir(), "settings.txt")
	contents := "# Iwasaki action.\nbeta=2.6;c1=-0.331\n\nlattice_shape=8,4,4,4\n"
	require.NoError(t, os.WriteFile(filePath, []byte(contents), 0o644))

	paramsSet, err := ParseSettings(ctx, "file:"+filePath+";hmc_num_steps=20")
	require.NoError(t, err)
	assert.Equal(t, []string{hmc.ParamBeta, hmc.ParamC1, hmc.ParamShape, hmc.ParamNumLeapfrogSteps}, paramsSet)
	assert.Equal(t, 2.6, context.GetParamOr(ctx, hmc.ParamBeta, 0.0))
	assert.Equal(t, -0.331, context.GetParamOr(ctx, hmc.ParamC1, 0.0))
	assert.Equal(t, []int{8, 4, 4, 4}, context.GetParamOr(ctx, hmc.ParamShape, []int{}))
	assert.Equal(t, 20, context.GetParamOr(ctx, hmc.ParamNumLeapfrogSteps, 0))

	_, err = ParseSettings(ctx, "file:"+filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.50s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "12.35ms", FormatDuration(12_345_678*time.Nanosecond))
	assert.Equal(t, "2.00m", FormatDuration(2*time.Minute))
	assert.Equal(t, "1.25h", FormatDuration(75*time.Minute))
	assert.Equal(t, "3.00µs", FormatDuration(3*time.Microsecond))
	assert.Equal(t, "500ns", FormatDuration(500*time.Nanosecond))
	assert.Equal(t, "0s", FormatDuration(0))
}

func TestHumanizeInt(t *testing.T) {
	assert.Equal(t, "0", humanizeInt(0))
	assert.Equal(t, "999", humanizeInt(uint16(999)))
	assert.Equal(t, "1,000,000", humanizeInt(int64(1_000_000)))
	assert.Equal(t, "-12,345", humanizeInt(int32(-12345)))
}

func TestSummaryTable(t *testing.T) {
	h := measure.NewHistory()
	require.NoError(t, h.Record(0, []float64{0.6, 0.62}, []float64{-1, -2}, []float64{0.1, 0.2}, []bool{true, false}))
	s, err := h.Summary(0)
	require.NoError(t, err)
	table := SummaryTable("Run", s)
	assert.Contains(t, table, "Plaquette (chain 1)")
	assert.Contains(t, table, "50.0%")
	assert.Contains(t, table, "0.610000")
}

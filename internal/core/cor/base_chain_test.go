// Copyright 2025 The vodsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cor_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/core/cor"
)

// appendCommand appends its suffix to the string flowing through the chain's
// input/output slots, recording that it ran.
type appendCommand struct {
	cor.BaseCommand
	suffix string
	ran    *[]string
	fail   error
}

func newAppendCommand(name, suffix string, ran *[]string, fail error) *appendCommand {
	return &appendCommand{
		BaseCommand: *cor.NewBaseCommand(name),
		suffix:      suffix,
		ran:         ran,
		fail:        fail,
	}
}

func (c *appendCommand) IsExecutable(ctx cor.Context) bool {
	_, ok := ctx.Get(cor.CtxIn).(string)
	return ok
}

func (c *appendCommand) Execute(ctx cor.Context) {
	*c.ran = append(*c.ran, c.GetName())
	if c.fail != nil {
		ctx.AddError(c.GetName(), c.fail)
		return
	}
	in := ctx.Get(cor.CtxIn).(string)
	ctx.Add(cor.CtxOut, in+c.suffix)
}

func newChainContext(goCtx context.Context, seed string) cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(goCtx)
	ctx.Add(cor.CtxIn, seed)
	return ctx
}

// TestChainPipesOutputToInput checks the flip-flop between the output and
// input slots: each command sees the previous command's output as its input.
func TestChainPipesOutputToInput(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("pipe-test")
	chain.AddCommand(newAppendCommand("first", "-a", &ran, nil))
	chain.AddCommand(newAppendCommand("second", "-b", &ran, nil))

	ctx := newChainContext(context.Background(), "seed")
	chain.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, "seed-a-b", ctx.Get(cor.CtxIn))
	assert.Nil(t, ctx.Get(cor.CtxOut))
}

// TestChainStopsOnError confirms the default behavior: the first recorded
// error stops the chain before the next command runs.
func TestChainStopsOnError(t *testing.T) {
	var ran []string
	failure := errors.New("boom")
	chain := cor.NewBaseChain("stop-test")
	chain.AddCommand(newAppendCommand("first", "-a", &ran, failure))
	chain.AddCommand(newAppendCommand("second", "-b", &ran, nil))

	ctx := newChainContext(context.Background(), "seed")
	chain.Execute(ctx)

	require.True(t, ctx.HasErrors())
	assert.Equal(t, []string{"first"}, ran)
	assert.Equal(t, failure, ctx.GetErrors()["first"])
}

// TestChainContinueOnFailure runs every command even when an earlier one
// recorded an error.
func TestChainContinueOnFailure(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("continue-test").ContinueOnFailure(true)
	chain.AddCommand(newAppendCommand("first", "-a", &ran, errors.New("boom")))
	chain.AddCommand(newAppendCommand("second", "-b", &ran, nil))

	ctx := newChainContext(context.Background(), "seed")
	chain.Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.Equal(t, []string{"first", "second"}, ran)
}

// TestChainSkipsNonExecutable skips a command whose precondition fails but
// keeps going.
func TestChainSkipsNonExecutable(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("skip-test")
	// No seed value: the first command's IsExecutable rejects a nil input.
	chain.AddCommand(newAppendCommand("first", "-a", &ran, nil))

	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	chain.Execute(ctx)

	assert.Empty(t, ran)
	assert.False(t, ctx.HasErrors())
}

// TestChainStopsOnCancellation verifies a canceled Go context stops the
// chain between commands and records the cancellation as a chain error.
func TestChainStopsOnCancellation(t *testing.T) {
	var ran []string
	goCtx, cancel := context.WithCancel(context.Background())
	cancelingCommand := newAppendCommand("first", "-a", &ran, nil)

	chain := cor.NewBaseChain("cancel-test")
	chain.AddCommand(cancelingCommand)
	chain.AddCommand(newAppendCommand("second", "-b", &ran, nil))

	ctx := newChainContext(goCtx, "seed")
	cancel()
	chain.Execute(ctx)

	assert.Empty(t, ran)
	require.True(t, ctx.HasErrors())
	assert.ErrorIs(t, ctx.GetErrors()["cancel-test"], context.Canceled)
}

// TestContextTempFileCleanup tracks a temp file on the context and removes
// it on Close.
func TestContextTempFileCleanup(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "chain-test-")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	ctx.AddTempFile(f.Name())
	ctx.Close()

	_, err = os.Stat(f.Name())
	assert.True(t, os.IsNotExist(err))
}

package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/pkg/agent"
	"localcloud/pkg/bundle"
	"localcloud/pkg/model"
)

type fakeProbe struct{ has bool }

func (p fakeProbe) HasIdentity() bool { return p.has }

type fakeFetcher struct {
	calls []string
	err   error
}

func (f *fakeFetcher) FetchAndInstall(_ context.Context, url string) error {
	f.calls = append(f.calls, url)
	return f.err
}

type fakeSupervisor struct {
	running  bool
	launches int
	err      error
}

func (s *fakeSupervisor) IsRunning(context.Context) bool { return s.running }

func (s *fakeSupervisor) EnsureStarted(context.Context, agent.SecretFunc) error {
	s.launches++
	return s.err
}

type fakeJournal struct {
	kinds   []string
	entries []string
}

func (j *fakeJournal) Record(_ context.Context, kind, subject, detail string) {
	j.kinds = append(j.kinds, kind)
	j.entries = append(j.entries, subject+" "+detail)
}

type harness struct {
	ctl     *Controller
	fetcher *fakeFetcher
	sup     *fakeSupervisor
	journal *fakeJournal
	stderr  *bytes.Buffer
}

func newHarness(hasIdentity, running, elevated bool) *harness {
	h := &harness{
		fetcher: &fakeFetcher{},
		sup:     &fakeSupervisor{running: running},
		journal: &fakeJournal{},
		stderr:  &bytes.Buffer{},
	}
	h.ctl = &Controller{
		Probe:      fakeProbe{has: hasIdentity},
		Fetcher:    h.fetcher,
		Supervisor: h.sup,
		Journal:    h.journal,
		IsElevated: func() bool { return elevated },
		Stderr:     h.stderr,
	}
	return h
}

func TestRun_NoInviteNoIdentity(t *testing.T) {
	h := newHarness(false, false, true)
	state, err := h.ctl.Run(context.Background(), "")

	assert.ErrorIs(t, err, ErrAwaitingInvite)
	assert.Equal(t, AwaitingInvite, state)
	assert.Empty(t, h.fetcher.calls)
	assert.Zero(t, h.sup.launches)
}

func TestRun_JoinThenLaunch(t *testing.T) {
	h := newHarness(false, false, true)
	state, err := h.ctl.Run(context.Background(), "https://example.com/join/abc.zip")

	require.NoError(t, err)
	assert.Equal(t, MainMenu, state)
	assert.Equal(t, []string{"https://example.com/join/abc.zip"}, h.fetcher.calls)
	assert.Equal(t, 1, h.sup.launches)
	assert.Equal(t, []string{model.EventJoin, model.EventAgentLaunch}, h.journal.kinds)
}

func TestRun_JournalOmitsInvitePath(t *testing.T) {
	const invite = "https://example.com/join/0d5c2f7e-secret.zip?token=abc"

	h := newHarness(false, true, true)
	_, err := h.ctl.Run(context.Background(), invite)
	require.NoError(t, err)
	require.Len(t, h.journal.entries, 1)
	assert.Equal(t, "https://example.com/… ", h.journal.entries[0])

	h = newHarness(false, false, true)
	h.fetcher.err = fmt.Errorf("download join bundle %s: 404 Not Found", invite)
	_, err = h.ctl.Run(context.Background(), invite)
	require.Error(t, err)
	require.Len(t, h.journal.entries, 1)
	assert.NotContains(t, h.journal.entries[0], "0d5c2f7e-secret")
	assert.NotContains(t, h.journal.entries[0], "token=abc")
	assert.Contains(t, h.journal.entries[0], "404 Not Found")
}

func TestRun_IdentityAndAgentRunning(t *testing.T) {
	h := newHarness(true, true, false)
	state, err := h.ctl.Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, MainMenu, state)
	assert.Zero(t, h.sup.launches)
	assert.Empty(t, h.fetcher.calls)
}

func TestRun_IdentityAgentStopped(t *testing.T) {
	h := newHarness(true, false, false)
	state, err := h.ctl.Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, MainMenu, state)
	assert.Equal(t, 1, h.sup.launches)
}

func TestRun_JoinRequiresRoot(t *testing.T) {
	h := newHarness(false, false, false)
	_, err := h.ctl.Run(context.Background(), "https://example.com/join/abc.zip")

	assert.ErrorIs(t, err, ErrElevationRequired)
	assert.Empty(t, h.fetcher.calls)
	assert.Zero(t, h.sup.launches)
}

func TestRun_FetchErrorsStopBeforeLaunch(t *testing.T) {
	for _, fetchErr := range []error{bundle.ErrInvalidInviteURL, bundle.ErrUnsupportedPlatform} {
		h := newHarness(false, false, true)
		h.fetcher.err = fetchErr
		state, err := h.ctl.Run(context.Background(), "nonsense")

		assert.ErrorIs(t, err, fetchErr)
		assert.Equal(t, Fetching, state)
		assert.Zero(t, h.sup.launches)
		assert.Equal(t, []string{model.EventJoinFailed}, h.journal.kinds)
	}
}

func TestRun_LaunchErrorStillReachesMenu(t *testing.T) {
	h := newHarness(true, false, true)
	h.sup.err = &agent.LaunchError{Agent: "nebula", Err: errors.New("permission denied")}

	state, err := h.ctl.Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, MainMenu, state)
	assert.Equal(t, 1, h.sup.launches)
	assert.Equal(t, "Error: could not start nebula: permission denied\n", h.stderr.String())
	assert.Equal(t, []string{model.EventAgentLaunchFailed}, h.journal.kinds)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "checking_agent", CheckingAgent.String())
	assert.Equal(t, "state(9)", State(9).String())
}

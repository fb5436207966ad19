package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	loadsapi "github.com/pukhraj-kanwal/Dispatch-hub/internal/api/loads_api"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/integrations/dispatch/fake"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/loads"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *fake.Backend) {
	t.Helper()
	b := fake.New()
	reg := loads.New(b, b, b)
	require.NoError(t, reg.FetchLoads(context.Background()))
	srv := httptest.NewServer(loadsapi.New(reg).Handler())
	t.Cleanup(srv.Close)
	return srv, b
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--addr", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadctl_List(t *testing.T) {
	srv, _ := newServer(t)

	out, err := run(t, srv, "list")
	require.NoError(t, err)
	require.Contains(t, out, "Unconfirmed (2)")
	require.Contains(t, out, "Confirmed (6)")
	require.Contains(t, out, "DR-4586")

	out, err = run(t, srv, "--json", "list")
	require.NoError(t, err)
	var lists LoadLists
	require.NoError(t, json.Unmarshal([]byte(out), &lists))
	require.Len(t, lists.Unconfirmed, 2)
}

func TestLoadctl_ConfirmRejectConfirmAll(t *testing.T) {
	srv, _ := newServer(t)

	_, err := run(t, srv, "confirm", "DR-4586", "--pin", "0000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.True(t, apiErr.Retryable)

	out, err := run(t, srv, "confirm", "DR-4586", "--pin", "1234")
	require.NoError(t, err)
	require.Contains(t, out, "confirmed DR-4586: Confirmed")

	out, err = run(t, srv, "reject", "DR-4587")
	require.NoError(t, err)
	require.Contains(t, out, "rejected DR-4587")

	_, err = run(t, srv, "confirm-all", "--pin", "1234")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = run(t, srv, "confirm", "DR-4586")
	require.Error(t, err)
}

func TestLoadctl_PickupDeliver(t *testing.T) {
	srv, b := newServer(t)

	out, err := run(t, srv, "show", "DR-4585")
	require.NoError(t, err)
	require.Contains(t, out, "Seattle, WA -> Portland, OR")

	out, err = run(t, srv, "pickup", "DR-4585")
	require.NoError(t, err)
	require.Contains(t, out, "picked up DR-4585: In Progress")

	var apiErr *APIError
	_, err = run(t, srv, "deliver", "DR-4585", "--notes", "left at dock")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)

	out, err = run(t, srv, "deliver", "DR-4585", "--notes", "left at dock", "--photo", "a.jpg", "--photo", "b.jpg")
	require.NoError(t, err)
	require.Contains(t, out, "delivered DR-4585")

	proofs := b.Proofs()
	require.Len(t, proofs, 1)
	require.Equal(t, []string{"a.jpg", "b.jpg"}, proofs[0].PhotoRefs)
}

func TestLoadctl_ReassignAndState(t *testing.T) {
	srv, b := newServer(t)

	_, err := run(t, srv, "reassign", "DR-4588", "--reason", models.ReassignReasonOther)
	require.Error(t, err)

	out, err := run(t, srv, "reassign", "DR-4588", "--reason", models.ReassignReasonOther, "--details", "flat tire")
	require.NoError(t, err)
	require.Contains(t, out, "reassignment requested for DR-4588")
	require.Len(t, b.Reassignments(), 1)

	out, err = run(t, srv, "state")
	require.NoError(t, err)
	var st loads.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.Len(t, st.Confirmed, 6)
}

func TestLoadctl_EventsUnavailable(t *testing.T) {
	srv, _ := newServer(t)

	_, err := run(t, srv, "events", "DR-4585")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotImplemented, apiErr.StatusCode)
}

func TestLoadctl_ServerDown(t *testing.T) {
	srv, _ := newServer(t)
	srv.Close()

	_, err := run(t, srv, "list")
	require.Error(t, err)
}

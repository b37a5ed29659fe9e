package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"eventcore/internal/core"
	blobmemory "eventcore/internal/infra/blob/memory"
	"eventcore/internal/infra/persistence/memory"
	"eventcore/pkg/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newServer(t *testing.T) (*httptest.Server, int64, int64, int64) {
	t.Helper()
	store := memory.NewStore()
	var eventID, regID, groupID int64
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		event, err := tx.CreateEvent(domain.Event{Title: "Academy", Shortname: "aca"})
		if err != nil {
			return err
		}
		eventID = event.ID
		part, err := tx.CreatePart(domain.EventPart{EventID: event.ID, Title: "Full", Shortname: "F", Fee: decimal.RequireFromString("75")})
		if err != nil {
			return err
		}
		group, err := tx.CreateLodgementGroup(domain.LodgementGroup{EventID: event.ID, Title: "Main"})
		if err != nil {
			return err
		}
		groupID = group.ID
		reg, err := tx.CreateRegistration(domain.Registration{
			EventID:   event.ID,
			PersonaID: 1,
			IsMember:  true,
			Parts:     map[int64]domain.RegistrationPart{part.ID: {Status: domain.StatusParticipant}},
			Tracks:    map[int64]domain.RegistrationTrack{},
		})
		regID = reg.ID
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := core.NewService(store, core.WithArchive(blobmemory.New()))
	srv := httptest.NewServer(NewRouter(svc, nopLogger{}))
	t.Cleanup(srv.Close)
	return srv, eventID, regID, groupID
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func deltaBody(title string) string {
	return `{
		"EVENT_SCHEMA_VERSION": {"major": 2, "minor": 3},
		"lodgement_groups": {"-1": {"title": "` + title + `"}}
	}`
}

func updateBody(groupID int64, title string) string {
	return `{
		"EVENT_SCHEMA_VERSION": {"major": 2, "minor": 3},
		"lodgement_groups": {"` + itoa(groupID) + `": {"title": "` + title + `"}}
	}`
}

func TestPartialImportEndpoint(t *testing.T) {
	srv, eventID, _, groupID := newServer(t)
	base := srv.URL + "/events/" + itoa(eventID)

	resp, preview := post(t, base+"/partial-import?dry_run=true", updateBody(groupID, "Annex"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dry run status %d", resp.StatusCode)
	}
	token, _ := preview["token"].(string)
	if token == "" {
		t.Fatalf("dry run returned no token: %v", preview)
	}
	if preview["dry_run"] != true {
		t.Fatalf("dry_run flag missing: %v", preview)
	}

	resp, committed := post(t, base+"/partial-import?token="+token, updateBody(groupID, "Annex"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("commit status %d: %v", resp.StatusCode, committed)
	}
	if committed["token"] != token {
		t.Fatalf("token drifted: %v", committed["token"])
	}
	if committed["import_id"] == "" {
		t.Fatalf("missing import_id: %v", committed)
	}

	// Replaying the spent token must fail with 412: the retitle already
	// happened, so the re-run diffs empty and computes a different token.
	resp, _ = post(t, base+"/partial-import?token="+token, updateBody(groupID, "Annex"))
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("stale token status %d", resp.StatusCode)
	}
}

func TestPartialImportErrorMapping(t *testing.T) {
	srv, eventID, _, _ := newServer(t)
	base := srv.URL + "/events/" + itoa(eventID)

	// Wrong schema major version.
	resp, _ := post(t, base+"/partial-import", `{"EVENT_SCHEMA_VERSION": {"major": 99, "minor": 0}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("version mismatch status %d", resp.StatusCode)
	}

	// Broken reference.
	resp, _ = post(t, base+"/partial-import", `{
		"EVENT_SCHEMA_VERSION": {"major": 2, "minor": 3},
		"lodgements": {"-1": {"title": "Attic", "group_id": 424242}}
	}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("referential violation status %d", resp.StatusCode)
	}

	// Unknown event.
	resp, _ = post(t, srv.URL+"/events/999999/partial-import", deltaBody("Annex"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown event status %d", resp.StatusCode)
	}

	// Malformed JSON body.
	resp, _ = post(t, base+"/partial-import", `{`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status %d", resp.StatusCode)
	}
}

func TestRegistrationFeeEndpoint(t *testing.T) {
	srv, eventID, regID, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/events/" + itoa(eventID) + "/registrations/" + itoa(regID) + "/fee")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["amount_owed"] != "75" {
		t.Fatalf("unexpected fee %q", body["amount_owed"])
	}

	resp, err = http.Get(srv.URL + "/events/" + itoa(eventID) + "/registrations/424242/fee")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing registration status %d", resp.StatusCode)
	}
}

func TestHealthAndImportListing(t *testing.T) {
	srv, eventID, _, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	post(t, srv.URL+"/events/"+itoa(eventID)+"/partial-import", deltaBody("Annex"))
	resp, err = http.Get(srv.URL + "/events/" + itoa(eventID) + "/imports")
	if err != nil {
		t.Fatalf("imports: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var infos []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("decode imports: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 archived import, got %d", len(infos))
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

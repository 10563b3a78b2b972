package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"killfeed-tracker/internal/domain"
	"killfeed-tracker/internal/ingest"
	"killfeed-tracker/internal/remote"
	"killfeed-tracker/internal/service"
)

// AdminServer exposes the operational endpoints: manual faction syncs,
// cursor resets with reprocessing, and per-server ingestion diagnostics.
type AdminServer struct {
	factions *service.FactionSync
	poller   *service.Poller
	servers  service.ServerStore
	source   remote.Source
	logger   zerolog.Logger
}

func NewAdminServer(
	factions *service.FactionSync,
	poller *service.Poller,
	servers service.ServerStore,
	source remote.Source,
	logger zerolog.Logger,
) *AdminServer {
	return &AdminServer{
		factions: factions,
		poller:   poller,
		servers:  servers,
		source:   source,
		logger:   logger,
	}
}

// Register mounts the admin routes on the mux.
func (s *AdminServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/communities/{community}/factions/{faction}/sync", s.handleFactionSync)
	mux.HandleFunc("POST /v1/communities/{community}/factions/sync", s.handleFactionSyncAll)
	mux.HandleFunc("POST /v1/communities/{community}/servers/{server}/reprocess", s.handleReprocess)
	mux.HandleFunc("GET /v1/communities/{community}/servers/{server}/diagnostics", s.handleDiagnostics)
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *AdminServer) handleFactionSync(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("community")
	factionID := r.PathValue("faction")

	if err := s.factions.SyncFaction(r.Context(), communityID, factionID); err != nil {
		s.logger.Error().Err(err).
			Str("community_id", communityID).
			Str("faction_id", factionID).
			Msg("manual faction sync failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"community_id": communityID,
		"faction_id":   factionID,
		"status":       "synced",
	})
}

func (s *AdminServer) handleFactionSyncAll(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("community")

	if err := s.factions.SyncAllForCommunity(r.Context(), communityID); err != nil {
		s.logger.Error().Err(err).
			Str("community_id", communityID).
			Msg("community faction sync failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"community_id": communityID,
		"status":       "synced",
	})
}

func (s *AdminServer) handleReprocess(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("community")
	serverID := r.PathValue("server")

	res, err := s.poller.ReprocessServer(r.Context(), communityID, serverID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("community_id", communityID).
			Str("server_id", serverID).
			Msg("reprocess failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"community_id":   communityID,
		"server_id":      serverID,
		"events_applied": res.EventsApplied,
		"parse_failures": res.ParseFailures,
		"files_polled":   res.FilesPolled,
	})
}

type diagnosticCheck struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail"`
}

type diagnosticsResponse struct {
	CommunityID string            `json:"community_id"`
	ServerID    string            `json:"server_id"`
	Pass        bool              `json:"pass"`
	Checks      []diagnosticCheck `json:"checks"`
}

// handleDiagnostics runs the ingestion pipeline's health checks for one
// server without mutating any state: can we see the log files, do sample
// lines map to fields, does classification behave, and is the server
// registered under the right community.
func (s *AdminServer) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("community")
	serverID := r.PathValue("server")

	srv, err := s.servers.Get(r.Context(), communityID, serverID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := diagnosticsResponse{CommunityID: communityID, ServerID: serverID, Pass: true}

	resp.add(checkIsolation(srv, communityID, serverID))
	if srv != nil {
		resp.add(checkPathResolution(r.Context(), s.source, srv))
	}
	resp.add(checkFieldMapping())
	resp.add(checkClassification())

	status := http.StatusOK
	if !resp.Pass {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (r *diagnosticsResponse) add(c diagnosticCheck) {
	r.Checks = append(r.Checks, c)
	if !c.Pass {
		r.Pass = false
	}
}

func checkIsolation(srv *domain.Server, communityID, serverID string) diagnosticCheck {
	c := diagnosticCheck{Name: "isolation"}
	if srv == nil {
		c.Detail = "server not registered under this community"
		return c
	}
	if srv.CommunityID != communityID || srv.ServerID != serverID {
		c.Detail = "registration key mismatch"
		return c
	}
	c.Pass = true
	c.Detail = "server registered with isolated scope"
	return c
}

func checkPathResolution(ctx context.Context, source remote.Source, srv *domain.Server) diagnosticCheck {
	c := diagnosticCheck{Name: "path_resolution"}
	files, err := source.ListFiles(ctx, srv)
	if err != nil {
		c.Detail = "log directories unreadable: " + err.Error()
		return c
	}
	if len(files) == 0 {
		c.Detail = "no log files found under configured directories"
		return c
	}
	c.Pass = true
	c.Detail = "log files visible"
	return c
}

func checkFieldMapping() diagnosticCheck {
	c := diagnosticCheck{Name: "field_mapping"}
	const sample = "2025-01-01T00:00:00Z;DEATH;id1;Alpha;id2;Bravo;weapon_m4;42.0"
	rec, err := ingest.ParseLine(sample)
	if err != nil {
		c.Detail = "sample line failed to parse: " + err.Error()
		return c
	}
	d := rec.Death
	if d.KillerID != "id1" || d.VictimID != "id2" || d.Cause != "weapon_m4" || !d.HasDistance {
		c.Detail = "sample line fields mapped incorrectly"
		return c
	}
	c.Pass = true
	c.Detail = "sample line fields mapped"
	return c
}

func checkClassification() diagnosticCheck {
	c := diagnosticCheck{Name: "classification"}
	cases := []struct {
		rec  domain.DeathRecord
		want domain.DeathType
	}{
		{domain.DeathRecord{KillerID: "a", VictimID: "b", VictimName: "B", Cause: "weapon_m4"}, domain.DeathTypePlayerVsPlayer},
		{domain.DeathRecord{KillerID: "a", VictimID: "a", VictimName: "A", Cause: "fall"}, domain.DeathTypeSuicide},
		{domain.DeathRecord{KillerID: "x", VictimID: "b", VictimName: "B", Cause: "fall"}, domain.DeathTypeEnvironmental},
	}
	for _, tc := range cases {
		if got := ingest.Classify(tc.rec).DeathType; got != tc.want {
			c.Detail = "cause " + tc.rec.Cause + " classified as " + string(got)
			return c
		}
	}
	c.Pass = true
	c.Detail = "canned records classified as expected"
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

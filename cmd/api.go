package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/monitoring"
	"github.com/sells-group/ir-radar/internal/pipeline"
	"github.com/sells-group/ir-radar/internal/store"
)

// api holds the handlers behind the HTTP server. All handlers are thin
// wrappers over the same pipeline components the CLI commands use.
type api struct {
	env *appEnv
}

func newAPI(env *appEnv) *api {
	return &api{env: env}
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) runPipeline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyIDs []string `json:"company_ids"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	stats, err := a.env.Coordinator.Run(r.Context(), req.CompanyIDs)
	if err != nil {
		zap.L().Error("api: pipeline run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *api) retryDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	retried, err := a.env.Coordinator.RetryDeadLetters(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"retried": retried})
}

func (a *api) refreshFinancials(w http.ResponseWriter, r *http.Request) {
	refreshed, err := a.env.Refresher.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"refreshed": refreshed})
}

func (a *api) clearSignals(w http.ResponseWriter, r *http.Request) {
	signals, articles, err := a.env.Store.ClearSignalsAndArticles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"signals_deleted":  signals,
		"articles_deleted": articles,
	})
}

func (a *api) summary(w http.ResponseWriter, r *http.Request) {
	filter := pipeline.SummaryFilter{
		Days:              queryInt(r, "days", 7),
		HideContactedDays: queryInt(r, "hide_contacted_days", 0),
		HideSnoozedDays:   queryInt(r, "hide_snoozed_days", 0),
	}
	if ids, ok := r.URL.Query()["company"]; ok {
		filter.CompanyIDs = ids
	}

	summaries, err := a.env.Aggregator.GetPainSummary(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows := enrichSummaries(r.Context(), a.env, summaries)
	if rows == nil {
		rows = []summaryRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *api) signals(w http.ResponseWriter, r *http.Request) {
	filter := store.SignalFilter{
		Limit: queryInt(r, "limit", 100),
	}
	if ids, ok := r.URL.Query()["company"]; ok {
		filter.CompanyIDs = ids
	}
	if t := r.URL.Query().Get("type"); t != "" {
		st := model.SignalType(t)
		if !st.IsValid() {
			writeError(w, http.StatusBadRequest, "unknown signal type")
			return
		}
		filter.SignalType = st
	}
	if v := r.URL.Query().Get("min_relevance"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_relevance must be a number")
			return
		}
		filter.MinRelevance = f
	}
	if hours := queryInt(r, "since_hours", 0); hours > 0 {
		filter.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}

	signals, err := a.env.Store.ListSignals(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if signals == nil {
		signals = []model.Signal{}
	}
	writeJSON(w, http.StatusOK, signals)
}

func (a *api) hotSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := a.env.Store.HotSignals(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if signals == nil {
		signals = []model.Signal{}
	}
	writeJSON(w, http.StatusOK, signals)
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	snap, err := monitoring.NewCollector(a.env.Store).Collect(r.Context(), cfg.Monitoring.LookbackWindowHours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *api) listCompanies(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""
	companies, err := a.env.Store.ListCompanies(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if companies == nil {
		companies = []model.Company{}
	}
	writeJSON(w, http.StatusOK, companies)
}

func (a *api) addCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string   `json:"name"`
		Ticker  string   `json:"ticker"`
		Aliases []string `json:"aliases"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	company, err := a.env.Store.AddCompany(r.Context(), model.Company{
		Name:    req.Name,
		Ticker:  req.Ticker,
		Aliases: req.Aliases,
		Active:  true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, company)
}

func (a *api) removeCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.env.Store.GetCompany(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}
	if err := a.env.Store.DeleteCompany(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (a *api) setCompanyActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := a.env.Store.GetCompany(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}
	if err := a.env.Store.SetCompanyActive(r.Context(), id, req.Active); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": req.Active})
}

func (a *api) recordOutreach(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID  string `json:"company_id"`
		ActionType string `json:"action_type"`
		Note       string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actionType := model.OutreachType(req.ActionType)
	if !actionType.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown action type")
		return
	}
	if actionType == model.OutreachNote && req.Note == "" {
		writeError(w, http.StatusBadRequest, "note is required for note actions")
		return
	}
	if _, err := a.env.Store.GetCompany(r.Context(), req.CompanyID); err != nil {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}

	action, err := a.env.Store.AddOutreach(r.Context(), model.OutreachAction{
		CompanyID:  req.CompanyID,
		ActionType: actionType,
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

func (a *api) listOutreach(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	actions, err := a.env.Store.ListOutreach(r.Context(), companyID, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if actions == nil {
		actions = []model.OutreachAction{}
	}
	writeJSON(w, http.StatusOK, actions)
}

// hiddenCompanies lists company IDs currently suppressed from the summary
// by recent contact or snooze, so the UI can show why a name is missing.
func (a *api) hiddenCompanies(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	var contactedSince, snoozedSince time.Time
	if days := queryInt(r, "hide_contacted_days", 7); days > 0 {
		contactedSince = now.AddDate(0, 0, -days)
	}
	if days := queryInt(r, "hide_snoozed_days", 7); days > 0 {
		snoozedSince = now.AddDate(0, 0, -days)
	}

	hidden, err := a.env.Store.HiddenCompanyIDs(r.Context(), contactedSince, snoozedSince)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ids := make([]string, 0, len(hidden))
	for id := range hidden {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string][]string{"hidden": ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

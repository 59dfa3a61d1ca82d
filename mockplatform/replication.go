package mockplatform

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type replicationDefinition struct {
	name           string
	description    string
	targetName     string
	enabled        bool
	payload        []string
	status         string
	startedAt      *time.Time
	endedAt        *time.Time
	failureMessage string

	actionID        string
	instance        int
	cancelRequested bool
}

func (d *replicationDefinition) inFlight() bool {
	switch d.status {
	case servicedef.ReplicationStatusPending, servicedef.ReplicationStatusRunning, servicedef.ReplicationStatusCancelRequested:
		return true
	}
	return false
}

func (d *replicationDefinition) runningActionID() string {
	return fmt.Sprintf("%s=%s=%d", servicedef.ReplicationActionExecutor, d.actionID, d.instance)
}

// replicationUpdate is the body of create and update requests. Pointers distinguish an absent
// property from an empty one.
type replicationUpdate struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	TargetName  *string   `json:"targetName"`
	Enabled     *bool     `json:"enabled"`
	Payload     *[]string `json:"payload"`
}

func (p *Platform) replicationRoutes(r chi.Router) {
	r.Get("/api/replication-service-status", p.handleReplicationStatus)
	r.Group(func(r chi.Router) {
		r.Use(p.requireAdmin)
		r.Get("/api/replication-definitions", p.handleListReplications)
		r.Post("/api/replication-definitions", p.handleCreateReplication)
		r.Get("/api/replication-definition/{name}", p.handleGetReplication)
		r.Put("/api/replication-definition/{name}", p.handleUpdateReplication)
		r.Delete("/api/replication-definition/{name}", p.handleDeleteReplication)
		r.Post("/api/running-replication-actions", p.handleRunReplication)
		r.Get("/api/running-actions", p.handleListRunningActions)
		r.Get("/api/running-action/{actionId}", p.handleGetRunningAction)
		r.Delete("/api/running-action/{actionId}", p.handleCancelRunningAction)
	})
}

// requireAdmin rejects anyone but the administrator with 401, as the replication web scripts do.
func (p *Platform) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.isAdmin(currentUser(r)) {
			writeWebScriptError(w, http.StatusUnauthorized, "Administrator access is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Platform) handleReplicationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jsonObject{"data": jsonObject{"enabled": true}})
}

func replicationDetailsURL(name string) string {
	return "/api/replication-definition/" + url.PathEscape(name)
}

func (p *Platform) replicationSummaryJSON(d *replicationDefinition) jsonObject {
	return jsonObject{
		"name":      d.name,
		"status":    d.status,
		"enabled":   d.enabled,
		"startedAt": isoObject(d.startedAt),
		"details":   replicationDetailsURL(d.name),
	}
}

func (p *Platform) replicationJSON(d *replicationDefinition) jsonObject {
	payload := []jsonObject{}
	for _, id := range d.payload {
		n := p.nodes[id]
		if n == nil {
			continue
		}
		payload = append(payload, jsonObject{
			"nodeRef":  n.nodeRef(),
			"isFolder": n.isFolder(),
			"name":     n.name,
			"path":     p.nodePath(n),
		})
	}
	var executionDetails interface{}
	if d.instance > 0 {
		executionDetails = "/api/running-action/" + d.runningActionID()
	}
	return jsonObject{
		"name":                 d.name,
		"description":          d.description,
		"status":               d.status,
		"startedAt":            isoObject(d.startedAt),
		"endedAt":              isoObject(d.endedAt),
		"failureMessage":       nullIfEmpty(d.failureMessage),
		"executionDetails":     executionDetails,
		"transferLocalReport":  nil,
		"transferRemoteReport": nil,
		"enabled":              d.enabled,
		"targetName":           nullIfEmpty(d.targetName),
		"payload":              payload,
	}
}

func (p *Platform) runningActionJSON(d *replicationDefinition) jsonObject {
	return jsonObject{
		"id":              d.runningActionID(),
		"type":            servicedef.ReplicationActionExecutor,
		"actionId":        d.actionID,
		"actionInstance":  d.instance,
		"actionNodeRef":   nil,
		"replicationName": d.name,
		"status":          d.status,
		"startedAt":       isoObject(d.startedAt),
		"cancelRequested": d.cancelRequested,
		"details":         "/api/running-action/" + d.runningActionID(),
	}
}

func (p *Platform) handleListReplications(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	defs := make([]*replicationDefinition, 0, len(p.replications))
	for _, d := range p.replications {
		defs = append(defs, d)
	}
	byName := func(i, j int) bool { return defs[i].name < defs[j].name }
	switch r.URL.Query().Get("sort") {
	case "status":
		sort.Slice(defs, func(i, j int) bool {
			if defs[i].status != defs[j].status {
				return defs[i].status < defs[j].status
			}
			return byName(i, j)
		})
	case "lastRun":
		// Most recently started first; never-run definitions last.
		sort.Slice(defs, func(i, j int) bool {
			a, b := defs[i].startedAt, defs[j].startedAt
			switch {
			case a != nil && b != nil && !a.Equal(*b):
				return a.After(*b)
			case a != nil && b == nil:
				return true
			case a == nil && b != nil:
				return false
			}
			return byName(i, j)
		})
	default:
		sort.Slice(defs, byName)
	}
	data := make([]jsonObject, 0, len(defs))
	for _, d := range defs {
		data = append(data, p.replicationSummaryJSON(d))
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": data})
}

func readReplicationUpdate(r *http.Request) (replicationUpdate, error) {
	var u replicationUpdate
	if err := readJSON(r, &u); err != nil {
		return u, err
	}
	return u, nil
}

// resolvePayload converts node references to node ids. Unknown nodes are an error.
func (p *Platform) resolvePayload(refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id := servicedef.IDFromNodeRef(ref)
		if !strings.HasPrefix(ref, servicedef.StoreRefPrefix) || p.nodes[id] == nil {
			return nil, fmt.Errorf("unknown payload node %s", ref)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *Platform) applyReplicationUpdate(d *replicationDefinition, u replicationUpdate) error {
	if u.Payload != nil {
		ids, err := p.resolvePayload(*u.Payload)
		if err != nil {
			return err
		}
		d.payload = ids
	}
	if u.Description != nil {
		d.description = *u.Description
	}
	if u.TargetName != nil {
		d.targetName = *u.TargetName
	}
	if u.Enabled != nil {
		d.enabled = *u.Enabled
	}
	return nil
}

func (p *Platform) handleCreateReplication(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	u, err := readReplicationUpdate(r)
	if err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if u.Name == nil || *u.Name == "" || u.Description == nil {
		writeWebScriptError(w, http.StatusBadRequest, "A name and description are required")
		return
	}
	if p.replications[*u.Name] != nil {
		writeWebScriptError(w, http.StatusBadRequest, "A replication definition already exists with the name %s", *u.Name)
		return
	}
	d := &replicationDefinition{
		name:     *u.Name,
		enabled:  true,
		status:   servicedef.ReplicationStatusNew,
		actionID: uuid.New().String(),
	}
	if err := p.applyReplicationUpdate(d, u); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "%s", err)
		return
	}
	p.replications[d.name] = d
	p.log.Info().Str("replication", d.name).Msg("created replication definition")
	writeJSON(w, http.StatusOK, jsonObject{"data": p.replicationJSON(d)})
}

func (p *Platform) namedReplication(w http.ResponseWriter, r *http.Request) *replicationDefinition {
	name := pathParam(r, "name")
	d := p.replications[name]
	if d == nil {
		writeWebScriptError(w, http.StatusNotFound, "No Replication Definition found with that name: %s", name)
	}
	return d
}

func (p *Platform) handleGetReplication(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if d := p.namedReplication(w, r); d != nil {
		writeJSON(w, http.StatusOK, jsonObject{"data": p.replicationJSON(d)})
	}
}

func (p *Platform) handleUpdateReplication(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	d := p.namedReplication(w, r)
	if d == nil {
		return
	}
	u, err := readReplicationUpdate(r)
	if err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if u.Name != nil && *u.Name != d.name {
		if *u.Name == "" || p.replications[*u.Name] != nil {
			writeWebScriptError(w, http.StatusBadRequest, "Cannot rename %s to %q", d.name, *u.Name)
			return
		}
	}
	if err := p.applyReplicationUpdate(d, u); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "%s", err)
		return
	}
	if u.Name != nil && *u.Name != d.name {
		delete(p.replications, d.name)
		d.name = *u.Name
		p.replications[d.name] = d
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": p.replicationJSON(d)})
}

func (p *Platform) handleDeleteReplication(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if d := p.namedReplication(w, r); d != nil {
		delete(p.replications, d.name)
		d.cancelRequested = true
		p.log.Info().Str("replication", d.name).Msg("deleted replication definition")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (p *Platform) handleRunReplication(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	var params servicedef.RunReplicationParams
	if err := readJSON(r, &params); err != nil || params.Name == "" {
		writeWebScriptError(w, http.StatusBadRequest, "A replication definition name is required")
		return
	}
	d := p.replications[params.Name]
	switch {
	case d == nil:
		writeWebScriptError(w, http.StatusNotFound, "No Replication Definition found with that name: %s", params.Name)
		return
	case !d.enabled:
		writeWebScriptError(w, http.StatusBadRequest, "Replication definition %s is disabled", d.name)
		return
	case d.inFlight():
		writeWebScriptError(w, http.StatusBadRequest, "Replication definition %s is already running", d.name)
		return
	}
	d.instance++
	d.status = servicedef.ReplicationStatusPending
	d.startedAt = nil
	d.endedAt = nil
	d.failureMessage = ""
	d.cancelRequested = false
	go p.runReplication(d, d.instance)
	p.log.Info().Str("replication", d.name).Int("instance", d.instance).Msg("replication queued")
	writeJSON(w, http.StatusOK, jsonObject{"data": p.runningActionJSON(d)})
}

// runReplication moves a run through Running to Completed, one step per AsyncDelay. A cancel
// request takes effect at the next step.
func (p *Platform) runReplication(d *replicationDefinition, instance int) {
	for _, next := range []string{servicedef.ReplicationStatusRunning, servicedef.ReplicationStatusCompleted} {
		time.Sleep(p.opts.AsyncDelay)
		p.lock.Lock()
		if d.instance != instance || !d.inFlight() {
			p.lock.Unlock()
			return
		}
		now := time.Now()
		if d.cancelRequested {
			d.status = servicedef.ReplicationStatusCancelled
			d.endedAt = &now
			p.lock.Unlock()
			p.log.Info().Str("replication", d.name).Msg("replication cancelled")
			return
		}
		d.status = next
		if next == servicedef.ReplicationStatusRunning {
			d.startedAt = &now
		} else {
			d.endedAt = &now
		}
		p.lock.Unlock()
	}
	p.log.Info().Str("replication", d.name).Msg("replication completed")
}

func (p *Platform) findRunningAction(id string) *replicationDefinition {
	for _, d := range p.replications {
		if d.inFlight() && d.runningActionID() == id {
			return d
		}
	}
	return nil
}

func (p *Platform) handleListRunningActions(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	typeFilter := r.URL.Query().Get("type")
	data := []jsonObject{}
	names := make([]string, 0, len(p.replications))
	for name := range p.replications {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := p.replications[name]
		if d.inFlight() && (typeFilter == "" || typeFilter == servicedef.ReplicationActionExecutor) {
			data = append(data, p.runningActionJSON(d))
		}
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": data})
}

func (p *Platform) handleGetRunningAction(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	d := p.findRunningAction(pathParam(r, "actionId"))
	if d == nil {
		writeWebScriptError(w, http.StatusNotFound, "No Running Action found with that ID: %s", pathParam(r, "actionId"))
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": p.runningActionJSON(d)})
}

func (p *Platform) handleCancelRunningAction(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	d := p.findRunningAction(pathParam(r, "actionId"))
	if d == nil {
		writeWebScriptError(w, http.StatusNotFound, "No Running Action found with that ID: %s", pathParam(r, "actionId"))
		return
	}
	d.cancelRequested = true
	d.status = servicedef.ReplicationStatusCancelRequested
	w.WriteHeader(http.StatusNoContent)
}

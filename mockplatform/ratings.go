package mockplatform

import (
	"net/http"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
)

type rating struct {
	value     float64
	appliedAt time.Time
}

type ratingScheme struct {
	name              string
	minRating         float64
	maxRating         float64
	selfRatingAllowed bool
}

var ratingSchemes = []ratingScheme{
	{name: servicedef.LikesRatingScheme, minRating: 1, maxRating: 1, selfRatingAllowed: true},
	{name: servicedef.FiveStarRatingScheme, minRating: 1, maxRating: 5, selfRatingAllowed: false},
}

func findRatingScheme(name string) *ratingScheme {
	for i := range ratingSchemes {
		if ratingSchemes[i].name == name {
			return &ratingSchemes[i]
		}
	}
	return nil
}

func (p *Platform) ratingRoutes(r chi.Router) {
	r.Get("/api/rating/schemedefinitions", p.handleRatingSchemes)
	r.Get("/api/node/{storeType}/{storeId}/{id}/ratings", p.handleGetRatings)
	r.Post("/api/node/{storeType}/{storeId}/{id}/ratings", p.handleApplyRating)
	r.Delete("/api/node/{storeType}/{storeId}/{id}/ratings/{scheme}", p.handleRemoveRating)
}

func (p *Platform) handleRatingSchemes(w http.ResponseWriter, r *http.Request) {
	schemes := make([]jsonObject, 0, len(ratingSchemes))
	for _, s := range ratingSchemes {
		schemes = append(schemes, jsonObject{
			"name":              s.name,
			"minRating":         s.minRating,
			"maxRating":         s.maxRating,
			"selfRatingAllowed": s.selfRatingAllowed,
		})
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": jsonObject{"ratingSchemes": schemes}})
}

// ratedNode looks up the node addressed by the route, and writes a 404 if the current user
// cannot read it.
func (p *Platform) ratedNode(w http.ResponseWriter, r *http.Request) *node {
	n := p.nodeFromStorePath(r)
	if n == nil || !p.canReadNode(currentUser(r), n) {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find node %s", pathParam(r, "id"))
		return nil
	}
	return n
}

// ratingStatistics returns the average, count and total for a scheme. The average of an
// unrated node is -1.
func (p *Platform) ratingStatistics(nodeID, scheme string) (float64, int, float64) {
	byUser := p.ratings[nodeID][scheme]
	if len(byUser) == 0 {
		return -1, 0, 0
	}
	total := 0.0
	for _, rt := range byUser {
		total += rt.value
	}
	return total / float64(len(byUser)), len(byUser), total
}

func ratingsURL(n *node) string {
	return "/api/node/" + servicedef.NodeRefPath(n.nodeRef()) + "/ratings"
}

func (p *Platform) handleGetRatings(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	n := p.ratedNode(w, r)
	if n == nil {
		return
	}
	user := currentUser(r)
	own := jsonObject{}
	stats := jsonObject{}
	for _, s := range ratingSchemes {
		if rt, ok := p.ratings[n.id][s.name][user]; ok {
			own[s.name] = jsonObject{"rating": rt.value, "appliedAt": formatISO(rt.appliedAt), "appliedBy": user}
		}
		avg, count, total := p.ratingStatistics(n.id, s.name)
		stats[s.name] = jsonObject{"averageRating": avg, "ratingsCount": count, "ratingsTotal": total}
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": jsonObject{
		"nodeRef":        n.nodeRef(),
		"ratings":        own,
		"nodeStatistics": stats,
	}})
}

func (p *Platform) handleApplyRating(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	n := p.ratedNode(w, r)
	if n == nil {
		return
	}
	var params servicedef.RatingParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	scheme := findRatingScheme(params.RatingScheme)
	if scheme == nil {
		writeWebScriptError(w, http.StatusBadRequest, "Unknown rating scheme %q", params.RatingScheme)
		return
	}
	if params.Rating < scheme.minRating || params.Rating > scheme.maxRating {
		writeWebScriptError(w, http.StatusBadRequest, "Rating %v is out of range for scheme %s", params.Rating, scheme.name)
		return
	}
	user := currentUser(r)
	if !scheme.selfRatingAllowed && n.creator == user {
		writeWebScriptError(w, http.StatusBadRequest, "Users cannot rate their own content with scheme %s", scheme.name)
		return
	}
	if p.ratings[n.id] == nil {
		p.ratings[n.id] = make(map[string]map[string]rating)
	}
	if p.ratings[n.id][scheme.name] == nil {
		p.ratings[n.id][scheme.name] = make(map[string]rating)
	}
	p.ratings[n.id][scheme.name][user] = rating{value: params.Rating, appliedAt: time.Now()}

	avg, count, total := p.ratingStatistics(n.id, scheme.name)
	writeJSON(w, http.StatusOK, jsonObject{"data": jsonObject{
		"nodeRef":       n.nodeRef(),
		"ratedNodeUrl":  ratingsURL(n),
		"ratingScheme":  scheme.name,
		"rating":        params.Rating,
		"averageRating": avg,
		"ratingsCount":  count,
		"ratingsTotal":  total,
	}})
}

func (p *Platform) handleRemoveRating(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	n := p.ratedNode(w, r)
	if n == nil {
		return
	}
	schemeName := pathParam(r, "scheme")
	if findRatingScheme(schemeName) == nil {
		writeWebScriptError(w, http.StatusBadRequest, "Unknown rating scheme %q", schemeName)
		return
	}
	user := currentUser(r)
	if _, ok := p.ratings[n.id][schemeName][user]; !ok {
		writeWebScriptError(w, http.StatusNotFound, "No %s rating by %s on node %s", schemeName, user, n.id)
		return
	}
	delete(p.ratings[n.id][schemeName], user)

	avg, count, total := p.ratingStatistics(n.id, schemeName)
	writeJSON(w, http.StatusOK, jsonObject{"data": jsonObject{
		"nodeRef":       n.nodeRef(),
		"averageRating": avg,
		"ratingsCount":  count,
		"ratingsTotal":  total,
	}})
}

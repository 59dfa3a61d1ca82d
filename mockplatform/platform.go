// Package mockplatform is an in-memory implementation of the content platform's REST surface:
// the web scripts used by the suites, the public workflow API, and enough of the public core
// API to create content nodes. It exists so that the suites can be exercised without a real
// platform, and it only models the behavior that the suites observe.
package mockplatform

import (
	"net/http"
	"sync"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Path prefixes of the three APIs.
const (
	WebScriptsPrefix = "/alfresco/service"
	WorkflowPrefix   = "/alfresco/api/-default-/public/workflow/versions/1"
	CorePrefix       = "/alfresco/api/-default-/public/alfresco/versions/1"
)

const (
	defaultAdminUserName = "admin"
	defaultAdminPassword = "admin"
	defaultAsyncDelay    = time.Millisecond * 200

	edition = "Community"
	version = "mock"
)

// Options configures a Platform. Zero values select defaults.
type Options struct {
	AdminUserName string
	AdminPassword string

	// Capabilities are reported by api/server. The default is every capability.
	Capabilities []string

	// AsyncDelay is how long each step of a replication run takes, and how long a workflow
	// takes to end after its last task is completed.
	AsyncDelay time.Duration

	// Logger receives access and lifecycle logs. If nil, nothing is logged.
	Logger *zerolog.Logger
}

// Platform holds all of the mock's state. Every handler takes the lock for its whole duration.
type Platform struct {
	opts Options
	log  zerolog.Logger
	lock sync.Mutex

	people       map[string]*person
	groups       map[string]*group
	nodes        map[string]*node
	sites        map[string]*site
	invitations  map[string]*invitation
	posts        map[string]*post
	ratings      map[string]map[string]map[string]rating
	replications map[string]*replicationDefinition
	processes    map[string]*process
	tasks        map[string]*task

	companyHomeID string
	sitesRootID   string
	userHomesID   string

	sequence int
}

// New creates a Platform containing only the administrator and the root folders.
func New(opts Options) *Platform {
	if opts.AdminUserName == "" {
		opts.AdminUserName = defaultAdminUserName
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = defaultAdminPassword
	}
	if len(opts.Capabilities) == 0 {
		opts.Capabilities = servicedef.AllCapabilities
	}
	if opts.AsyncDelay <= 0 {
		opts.AsyncDelay = defaultAsyncDelay
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	p := &Platform{
		opts:         opts,
		log:          log.With().Str("component", "mockplatform").Logger(),
		people:       make(map[string]*person),
		groups:       make(map[string]*group),
		nodes:        make(map[string]*node),
		sites:        make(map[string]*site),
		invitations:  make(map[string]*invitation),
		posts:        make(map[string]*post),
		ratings:      make(map[string]map[string]map[string]rating),
		replications: make(map[string]*replicationDefinition),
		processes:    make(map[string]*process),
		tasks:        make(map[string]*task),
		sequence:     100,
	}
	companyHome := p.addNode(nil, "Company Home", servicedef.NodeTypeFolder, opts.AdminUserName)
	p.companyHomeID = companyHome.id
	p.sitesRootID = p.addNode(companyHome, "Sites", servicedef.NodeTypeFolder, opts.AdminUserName).id
	p.userHomesID = p.addNode(companyHome, "User Homes", servicedef.NodeTypeFolder, opts.AdminUserName).id
	p.addPerson(&person{
		userName:  opts.AdminUserName,
		firstName: "Administrator",
		email:     "admin@example.com",
		password:  opts.AdminPassword,
	})
	p.groups[servicedef.SiteAdministratorsGroup] = &group{
		shortName:   servicedef.SiteAdministratorsGroup,
		displayName: "Site Administrators",
		members:     make(map[string]bool),
	}
	return p
}

// Handler returns the HTTP handler for all three APIs.
func (p *Platform) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(p.accessLog)
	r.Use(p.authenticate)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writePublicError(w, http.StatusMethodNotAllowed, "The operation is unsupported: %s %s", r.Method, r.URL.Path)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeWebScriptError(w, http.StatusNotFound, "Web Script not found: %s", r.URL.Path)
	})

	r.Route(WebScriptsPrefix, func(r chi.Router) {
		r.Get("/api/server", p.handleServerInfo)
		p.peopleRoutes(r)
		p.siteRoutes(r)
		p.forumRoutes(r)
		p.ratingRoutes(r)
		p.replicationRoutes(r)
		p.legacyWorkflowRoutes(r)
	})
	r.Route(WorkflowPrefix, p.publicWorkflowRoutes)
	r.Route(CorePrefix, p.coreRoutes)
	return r
}

func (p *Platform) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		p.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (p *Platform) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, servicedef.ServerInfoResponse{
		Data: servicedef.ServerInfo{
			Edition:      edition,
			Version:      version,
			Schema:       "1",
			Capabilities: p.opts.Capabilities,
		},
	})
}

// nextID returns the next numeric identifier, as used for workflow entities.
func (p *Platform) nextID() int {
	p.sequence++
	return p.sequence
}

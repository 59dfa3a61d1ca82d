package harness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const httpListenerTimeout = time.Second * 10

// Listener is an HTTP server started by StartListener.
type Listener struct {
	server *http.Server
	addr   string
	done   chan error
}

// StartListener serves the handler on the specified address (":0" picks a free port), and
// waits until the server is definitely accepting requests.
func StartListener(addr string, handler http.Handler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		server: &http.Server{
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead && r.URL.Path == "/" {
					w.WriteHeader(http.StatusOK) // we use this to test whether the listener is active yet
					return
				}
				handler.ServeHTTP(w, r)
			}),
			ReadHeaderTimeout: httpListenerTimeout,
		},
		addr: dialableAddr(ln.Addr()),
		done: make(chan error, 1),
	}
	go func() {
		err := l.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		l.done <- err
	}()

	deadline := time.NewTimer(httpListenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			_ = l.server.Close()
			return nil, fmt.Errorf("could not detect own listener at %s", l.addr)
		case err := <-l.done:
			return nil, fmt.Errorf("listener at %s stopped: %w", l.addr, err)
		case <-ticker.C:
			resp, err := http.DefaultClient.Head(l.BaseURL())
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return l, nil
				}
			}
		}
	}
}

// Addr returns the host:port that the listener is bound to.
func (l *Listener) Addr() string {
	return l.addr
}

func (l *Listener) BaseURL() string {
	return "http://" + l.addr
}

// Done receives the result of the server once it stops.
func (l *Listener) Done() <-chan error {
	return l.done
}

// Shutdown stops the server, waiting for active requests until ctx is done.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

// An address like [::]:8111 is fine for listening but not for connecting.
func dialableAddr(a net.Addr) string {
	tcp, ok := a.(*net.TCPAddr)
	if !ok || !tcp.IP.IsUnspecified() {
		return a.String()
	}
	return net.JoinHostPort("127.0.0.1", fmt.Sprint(tcp.Port))
}

// Package server implements the TCP line protocol of the control port.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/emap-store/pkg/sdk"
)

const (
	maxConnections = 100
	connLifetime   = 5 * time.Minute
	idleTimeout    = 30 * time.Second
)

type Router struct {
	service sdk.WorkspaceService
	log     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	active   map[net.Conn]struct{}
	stopped  bool
	conns    sync.WaitGroup
}

func NewRouter(s sdk.WorkspaceService, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{service: s, log: log, active: make(map[net.Conn]struct{})}
}

// Addr returns the bound address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen serves the control protocol on addr until Stop is called.
func (r *Router) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return listener.Close()
	}
	r.listener = listener
	r.mu.Unlock()
	r.log.Info("control port listening", "addr", listener.Addr().String())

	semaphore := make(chan struct{}, maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.log.Warn("accept failed", "error", err)
			continue
		}

		conn.SetDeadline(time.Now().Add(connLifetime))

		if !r.track(conn) {
			conn.Close()
			continue
		}
		go func(c net.Conn) {
			defer r.untrack(c)
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.handleConnection(c)
		}(conn)
	}
}

// Stop closes the listener and every open connection, then waits for the
// connection handlers to return. A router cannot be restarted.
func (r *Router) Stop() error {
	r.mu.Lock()
	r.stopped = true
	listener := r.listener
	r.listener = nil
	for c := range r.active {
		c.Close()
	}
	r.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	r.conns.Wait()
	return err
}

// track registers c as live. It reports false once Stop has run.
func (r *Router) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.active[c] = struct{}{}
	r.conns.Add(1)
	return true
}

func (r *Router) untrack(c net.Conn) {
	r.mu.Lock()
	delete(r.active, c)
	r.mu.Unlock()
	r.conns.Done()
}

func (r *Router) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	expires := time.Now().Add(connLifetime)

	for {
		// Each read gets the idle timeout, capped by the connection lifetime.
		deadline := time.Now().Add(idleTimeout)
		if deadline.After(expires) {
			deadline = expires
		}
		conn.SetReadDeadline(deadline)

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Debug("control connection closed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		if !r.dispatch(conn, strings.TrimSpace(line)) {
			return
		}
	}
}

// dispatch runs one command line and reports whether the connection stays open.
func (r *Router) dispatch(w io.Writer, line string) bool {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	if command == "" {
		return true
	}
	ctx := context.Background()

	switch strings.ToUpper(command) {
	case "PING":
		fmt.Fprintln(w, "PONG")

	case "LIST":
		list, err := r.service.ListWorkspaces(ctx)
		replyJSON(w, list, err)

	case "ACTIVE":
		active, err := r.service.Active(ctx)
		replyJSON(w, active, err)

	case "CREATE":
		rec, err := r.service.Create(ctx, rest)
		replyJSON(w, rec, err)

	case "LOAD":
		if rest == "" {
			replyUsage(w, "LOAD <id>")
			break
		}
		reply(w, r.service.Load(ctx, rest))

	case "DELETE":
		if rest == "" {
			replyUsage(w, "DELETE <id>")
			break
		}
		reply(w, r.service.Delete(ctx, rest))

	case "GET":
		if rest == "" {
			replyUsage(w, "GET <key>")
			break
		}
		// The value is quoted so that embedded newlines stay on one line.
		val, err := r.service.GetValue(ctx, rest)
		replyJSON(w, val, err)

	case "SET":
		key, value, ok := strings.Cut(rest, " ")
		if !ok || key == "" {
			replyUsage(w, "SET <key> <value>")
			break
		}
		reply(w, r.service.PutValue(ctx, key, value))

	case "QUIT":
		return false

	default:
		fmt.Fprintf(w, "ERR %s unknown command %q\n", sdk.CodeInvalidInput, command)
	}
	return true
}

func reply(w io.Writer, err error) {
	if err != nil {
		replyErr(w, err)
		return
	}
	fmt.Fprintln(w, "OK")
}

func replyJSON(w io.Writer, v any, err error) {
	if err != nil {
		replyErr(w, err)
		return
	}
	res, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(w, "ERR", sdk.CodeInternal, "internal error")
		return
	}
	fmt.Fprintln(w, "OK", string(res))
}

func replyErr(w io.Writer, err error) {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	fmt.Fprintln(w, "ERR", sdk.ErrorCode(err), msg)
}

func replyUsage(w io.Writer, usage string) {
	fmt.Fprintln(w, "ERR", sdk.CodeInvalidInput, "usage:", usage)
}

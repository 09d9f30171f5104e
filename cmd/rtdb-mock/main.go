// rtdb-mock is a local stand-in for a Firebase realtime database: the JSON
// REST surface plus SSE change streaming, enough to run kommobridge without
// a real backend.
//
//	rtdb-mock --addr :8080
//	kommobridge run  (with firebase.databaseUrl: http://localhost:8080)
//
// Requests must carry an access_token or auth query parameter unless --open
// is set, mirroring a locked-down database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wirasena/kommobridge/internal/logging"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "listen address")
		open     = flag.Bool("open", false, "accept requests without an access token")
		seedFile = flag.String("seed", "", "JSON object file loaded into the tree at startup")
		level    = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	log := logging.New(nil, *level, false)

	db := newTree()
	if *seedFile != "" {
		if err := db.loadSeed(*seedFile); err != nil {
			log.Fatal().Err(err).Str("file", *seedFile).Msg("loading seed")
		}
		log.Info().Str("file", *seedFile).Msg("seed loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:        *addr,
		Handler:     &server{db: db, open: *open, log: log},
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", *addr).Bool("auth", !*open).Msg("rtdb-mock listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("rtdb-mock stopped")
}

// frame is one change notification sent to stream subscribers.
type frame struct {
	Event string
	Path  string
	Data  any
}

// subscriber is one open event stream rooted at a path.
type subscriber struct {
	path   string
	frames chan frame
}

// tree is the in-memory database: a nested JSON object plus the set of open
// streams watching it.
type tree struct {
	mu   sync.RWMutex
	root map[string]any

	subMu sync.Mutex
	subs  map[int]*subscriber
	next  int
}

func newTree() *tree {
	return &tree{
		root: map[string]any{},
		subs: map[int]*subscriber{},
	}
}

func (t *tree) loadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("seed must be a JSON object: %w", err)
	}
	t.mu.Lock()
	t.root = v
	t.mu.Unlock()
	return nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func normalizePath(p string) string {
	return "/" + strings.Trim(p, "/")
}

func (t *tree) get(p string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return getAt(t.root, splitPath(p))
}

func getAt(node any, segs []string) any {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[s]
		if !ok {
			return nil
		}
	}
	return node
}

// put replaces the value at a path; nil deletes the node.
func (t *tree) put(p string, v any) error {
	segs := splitPath(p)

	t.mu.Lock()
	if len(segs) == 0 {
		switch val := v.(type) {
		case nil:
			t.root = map[string]any{}
		case map[string]any:
			t.root = val
		default:
			t.mu.Unlock()
			return errors.New("the root value must be a JSON object")
		}
	} else {
		parent := ensureParents(t.root, segs[:len(segs)-1])
		if v == nil {
			delete(parent, segs[len(segs)-1])
		} else {
			parent[segs[len(segs)-1]] = v
		}
	}
	t.mu.Unlock()

	t.notify("put", p, v)
	return nil
}

// patch merges keys into the object at a path; nil values delete keys.
func (t *tree) patch(p string, updates map[string]any) {
	segs := splitPath(p)

	t.mu.Lock()
	var target map[string]any
	if len(segs) == 0 {
		target = t.root
	} else {
		parent := ensureParents(t.root, segs[:len(segs)-1])
		last := segs[len(segs)-1]
		m, ok := parent[last].(map[string]any)
		if !ok {
			m = map[string]any{}
			parent[last] = m
		}
		target = m
	}
	for k, v := range updates {
		if v == nil {
			delete(target, k)
		} else {
			target[k] = v
		}
	}
	t.mu.Unlock()

	t.notify("patch", p, updates)
}

// push stores the value under a generated key and returns it.
func (t *tree) push(p string, v any) (string, error) {
	key := "-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:19]
	if err := t.put(strings.TrimRight(p, "/")+"/"+key, v); err != nil {
		return "", err
	}
	return key, nil
}

// ensureParents walks down the tree creating objects, clobbering any scalar
// in the way, and returns the map the final segment lives in.
func ensureParents(root map[string]any, segs []string) map[string]any {
	current := root
	for _, s := range segs {
		next, ok := current[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[s] = next
		}
		current = next
	}
	return current
}

func (t *tree) subscribe(p string) (int, *subscriber) {
	sub := &subscriber{path: normalizePath(p), frames: make(chan frame, 32)}

	t.subMu.Lock()
	id := t.next
	t.next++
	t.subs[id] = sub
	t.subMu.Unlock()
	return id, sub
}

func (t *tree) unsubscribe(id int) {
	t.subMu.Lock()
	delete(t.subs, id)
	t.subMu.Unlock()
}

// notify fans a change out to the streams that can see it. A write above a
// subscription point re-roots as a put of the subscriber's whole subtree.
// Slow subscribers drop frames.
func (t *tree) notify(event, p string, data any) {
	p = normalizePath(p)

	t.subMu.Lock()
	defer t.subMu.Unlock()

	for _, sub := range t.subs {
		rel, ok := relativePath(sub.path, p)
		if !ok {
			continue
		}
		f := frame{Event: event, Path: rel, Data: data}
		if rel == "/" && p != sub.path {
			f = frame{Event: "put", Path: "/", Data: t.get(sub.path)}
		}
		select {
		case sub.frames <- f:
		default:
		}
	}
}

// relativePath maps a write path into a subscriber's coordinate space.
func relativePath(sub, p string) (string, bool) {
	if sub == "/" {
		return p, true
	}
	switch {
	case p == sub:
		return "/", true
	case strings.HasPrefix(p, sub+"/"):
		return p[len(sub):], true
	case p == "/" || strings.HasPrefix(sub, p+"/"):
		// write above the subscription point
		return "/", true
	}
	return "", false
}

// server exposes the tree over the Firebase-style REST and SSE protocol.
type server struct {
	db   *tree
	open bool
	log  *logging.Logger
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.open && r.URL.Query().Get("access_token") == "" && r.URL.Query().Get("auth") == "" {
		http.Error(w, "Unauthorized request.", http.StatusUnauthorized)
		return
	}

	p, ok := strings.CutSuffix(r.URL.Path, ".json")
	if !ok {
		http.Error(w, "append .json to the path", http.StatusNotFound)
		return
	}

	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.stream(w, r, p)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.respond(w, s.db.get(p))
	case http.MethodPut:
		var v any
		if !s.decode(w, r, &v) {
			return
		}
		if err := s.db.put(p, v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logWrite("put", p)
		s.respond(w, v)
	case http.MethodPatch:
		var updates map[string]any
		if !s.decode(w, r, &updates) {
			return
		}
		s.db.patch(p, updates)
		s.logWrite("patch", p)
		s.respond(w, updates)
	case http.MethodPost:
		var v any
		if !s.decode(w, r, &v) {
			return
		}
		key, err := s.db.push(p, v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logWrite("push", p)
		s.respond(w, map[string]string{"name": key})
	case http.MethodDelete:
		if err := s.db.put(p, nil); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logWrite("delete", p)
		s.respond(w, nil)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) logWrite(op, p string) {
	s.log.Info().Str("op", op).Str("path", normalizePath(p)).Msg("write")
}

// stream serves one SSE subscription: an initial full-subtree put, then
// change frames and periodic keep-alives until the client goes away.
func (s *server) stream(w http.ResponseWriter, r *http.Request, p string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	id, sub := s.db.subscribe(p)
	defer s.db.unsubscribe(id)

	s.log.Info().Str("path", sub.path).Int("stream", id).Msg("stream opened")
	defer s.log.Info().Int("stream", id).Msg("stream closed")

	writeFrame(w, frame{Event: "put", Path: "/", Data: s.db.get(p)})
	flusher.Flush()

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case f := <-sub.frames:
			writeFrame(w, f)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, "event: keep-alive\ndata: null\n\n")
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, f frame) {
	payload, err := json.Marshal(struct {
		Path string `json:"path"`
		Data any    `json:"data"`
	}{Path: f.Path, Data: f.Data})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Event, payload)
}

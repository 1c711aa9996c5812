package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rmmh/blockmesh/go/pipeline"
	rp "github.com/rmmh/blockmesh/go/resourcepack"
	"github.com/rmmh/blockmesh/go/schematic"
)

const (
	kindBundle = "bundle"
	kindJSON   = "json"
)

type workItem struct {
	kind string
	name string
	done chan<- error
}

func (w *workItem) key() string { return w.kind + "/" + w.name }

type server struct {
	cfg   *pipeline.Config
	stack *rp.Stack

	binaryTime time.Time

	workQueue chan *workItem

	working  map[string][]*workItem
	workLock sync.Mutex
}

func newServer(cfg *pipeline.Config, stack *rp.Stack) *server {
	return &server{
		cfg:       cfg,
		stack:     stack,
		workQueue: make(chan *workItem),
		working:   make(map[string][]*workItem),
	}
}

func (s *server) sourcePath(name string) string {
	return filepath.Join(s.cfg.Serve.SchematicDir, name)
}

func (s *server) outputPath(kind, name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if kind == kindJSON {
		return filepath.Join(s.cfg.Serve.DataDir, kindJSON, stem+".json")
	}
	return filepath.Join(s.cfg.Serve.DataDir, kindBundle, stem+".zip")
}

// isStale reports whether out needs regenerating: it is missing, older
// than its schematic, or older than the running binary.
func (s *server) isStale(out, src string) bool {
	st, err := os.Stat(out)
	if err != nil {
		return true
	}
	if st.ModTime().Before(s.binaryTime) {
		return true
	}
	srcSt, err := os.Stat(src)
	return err == nil && st.ModTime().Before(srcSt.ModTime())
}

func (s *server) convert(ctx context.Context, kind, name string) error {
	src, out := s.sourcePath(name), s.outputPath(kind, name)
	if kind == kindJSON {
		return pipeline.ConvertJSON(s.cfg, src, out)
	}
	_, err := pipeline.ConvertOBJWithStack(ctx, s.cfg, s.stack, src, out)
	return err
}

func (s *server) worker(ctx context.Context) {
	for item := range s.workQueue {
		key := item.key()
		s.workLock.Lock()
		_, exists := s.working[key]
		s.working[key] = append(s.working[key], item)
		s.workLock.Unlock()
		if exists {
			// already converting; that worker answers everyone
			continue
		}
		err := s.convert(ctx, item.kind, item.name)
		if err != nil {
			slog.Error("conversion failed", "kind", item.kind, "schematic", item.name, "err", err)
		}
		s.workLock.Lock()
		for _, wait := range s.working[key] {
			wait.done <- err
			close(wait.done)
		}
		delete(s.working, key)
		s.workLock.Unlock()
	}
}

func (s *server) awaitUpdate(kind, name string) error {
	done := make(chan error, 1)
	s.workQueue <- &workItem{kind: kind, name: name, done: done}
	return <-done
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".") &&
		schematic.HasSchematicExt(name)
}

func (s *server) handler(kind, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if !validName(name) {
			http.Error(w, "bad schematic name", http.StatusBadRequest)
			return
		}
		src, out := s.sourcePath(name), s.outputPath(kind, name)
		if _, err := os.Stat(src); err != nil {
			http.NotFound(w, r)
			return
		}
		stale := s.isStale(out, src)
		slog.Debug("request", "path", r.URL.Path, "stale", stale)
		if stale {
			if err := s.awaitUpdate(kind, name); err != nil {
				http.Error(w, errors.Cause(err).Error(), http.StatusInternalServerError)
				return
			}
		}
		w.Header().Add("Cache-Control", "no-cache")
		w.Header().Set("Content-Type", contentType)
		http.ServeFile(w, r, out)
	}
}

func (s *server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/bundle/{name}", s.handler(kindBundle, "application/zip")).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/json/{name}", s.handler(kindJSON, "application/json")).Methods(http.MethodGet, http.MethodHead)
	return r
}

func (s *server) start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		go s.worker(ctx)
	}
}

func serve(ctx context.Context, cfg *pipeline.Config) error {
	stack, err := pipeline.OpenStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	s := newServer(cfg, stack)
	if exe, err := os.Executable(); err == nil {
		if st, err := os.Stat(exe); err == nil {
			s.binaryTime = st.ModTime()
		}
	}
	s.start(ctx, cfg.Workers)

	srv := &http.Server{
		Handler:      s.router(),
		Addr:         cfg.Serve.Addr,
		WriteTimeout: 120 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	slog.Info("listening", "addr", srv.Addr, "schematics", cfg.Serve.SchematicDir, "data", cfg.Serve.DataDir)
	return srv.ListenAndServe()
}

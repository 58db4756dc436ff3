package handlers

import (
	"net/http"
	"strings"
)

// Stage is a named step of the request pipeline
type Stage struct {
	Name string
	Wrap func(next http.Handler) http.Handler
}

// Pipeline is the composed handler together with the stages it was built from
type Pipeline struct {
	handler http.Handler
	stages  []string
}

// Compose wraps h with stages, the first stage sees the request first
// Stages with nil Wrap are skipped
func Compose(h http.Handler, stages ...Stage) *Pipeline {
	mds := make([]func(http.Handler) http.Handler, 0, len(stages))
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		if s.Wrap == nil {
			continue
		}
		mds = append(mds, s.Wrap)
		names = append(names, s.Name)
	}

	return &Pipeline{handler: chain(h, mds...), stages: names}
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Stages returns names of the stages in the order requests pass them
func (p *Pipeline) Stages() []string {
	return append([]string(nil), p.stages...)
}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// onlyPrefix applies middleware to requests with path under the prefix
func onlyPrefix(prefix string, md func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := md(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// when returns md if cond holds and nil otherwise
func when(cond bool, md func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if !cond {
		return nil
	}
	return md
}

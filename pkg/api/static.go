package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// configureStaticServing serves a single-page frontend from s.webDir. Unknown
// paths fall back to index.html so client-side routes resolve.
func (s *APIServer) configureStaticServing() {
	fileServer := http.FileServer(http.Dir(s.webDir))

	s.router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.webDir, filepath.Clean("/"+r.URL.Path))

		_, err := os.Stat(path)
		if os.IsNotExist(err) || (r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/")) {
			http.ServeFile(w, r, filepath.Join(s.webDir, "index.html"))
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

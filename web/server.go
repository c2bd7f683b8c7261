package web

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewServer builds the router serving the dashboard for the given training
// log file. The page is notified over a websocket when the log grows.
func NewServer(logPath, assetDir string) (*mux.Router, error) {
	t, err := NewTemplates(assetDir)
	if err != nil {
		return nil, err
	}
	t.AddMenuItem(Link{Name: "train", Url: "/train"})
	t.AddMenuItem(Link{Name: "stats", Url: "/stats"})

	page := NewTrainPage(t.Clone(), logPath)
	page.Watch(time.Second)

	r := mux.NewRouter()
	r.Handle("/", http.RedirectHandler("/train", http.StatusFound))
	r.PathPrefix("/static/").Handler(http.FileServer(http.Dir(assetDir)))
	r.HandleFunc("/train", page.Base())
	r.HandleFunc("/stats", page.Stats())
	r.HandleFunc("/ws", page.Websocket())
	return r, nil
}

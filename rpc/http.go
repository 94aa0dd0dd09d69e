package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bugsnag/bugsnag-go/errors"
	"github.com/dimfeld/httptreemux"
	"github.com/gorilla/handlers"
	"github.com/livemap/client/storage"
	"github.com/unrolled/render"
)

type R struct {
	Client Client
	Store  storage.Store
}

type Call struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func NewRouter(client Client, store storage.Store) *httptreemux.TreeMux {
	router, impl := httptreemux.New(), &R{Client: client, Store: store}
	router.POST("/", impl.handle)
	registerHanders(router)
	return router
}

func registerHanders(router *httptreemux.TreeMux) {
	router.MethodNotAllowedHandler = func(w http.ResponseWriter, r *http.Request, _ map[string]httptreemux.HandlerFunc) {
		render.New().JSON(w, http.StatusNotFound, map[string]interface{}{})
	}
	router.NotFoundHandler = func(w http.ResponseWriter, r *http.Request) {
		render.New().JSON(w, http.StatusNotFound, map[string]interface{}{})
	}
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, rcv interface{}) {
		err := fmt.Errorf(string(errors.New(rcv, 2).Stack()))
		render.New().JSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
	}
}

func (impl *R) handle(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var call Call
	d := json.NewDecoder(r.Body)
	d.UseNumber()
	if err := d.Decode(&call); err != nil {
		render.New().JSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	switch call.Method {
	case "getinfo":
		info, err := getInfo(r.Context(), impl.Client)
		if err != nil {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": err.Error()})
		} else {
			render.New().JSON(w, http.StatusOK, info)
		}
	case "talk":
		err := talk(impl.Client, call.Params)
		if err != nil {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": err.Error()})
		} else {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{})
		}
	case "requestnode":
		queued, err := requestNode(impl.Client, call.Params)
		if err != nil {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": err.Error()})
		} else {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"queued": queued})
		}
	case "flushnodes":
		err := impl.Client.FlushNodeRequests()
		if err != nil {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": err.Error()})
		} else {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{})
		}
	case "setcolor":
		color, err := setColor(impl.Client, call.Params)
		if err != nil {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": err.Error()})
		} else {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"color": color})
		}
	case "listsessions":
		sessions, err := listSessions(impl.Store)
		if err != nil {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": err.Error()})
		} else {
			render.New().JSON(w, http.StatusOK, sessions)
		}
	case "listframes":
		frames, err := listFrames(impl.Store, call.Params)
		if err != nil {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": err.Error()})
		} else {
			render.New().JSON(w, http.StatusOK, frames)
		}
	default:
		render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": fmt.Sprintf("invalid method %s", call.Method)})
	}
}

func handleCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Access-Control-Allow-Headers", "Content-Type,Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "OPTIONS,GET,POST")
		w.Header().Set("Access-Control-Max-Age", "600")
		if r.Method == "OPTIONS" {
			render.New().JSON(w, http.StatusOK, map[string]interface{}{})
		} else {
			handler.ServeHTTP(w, r)
		}
	})
}

func NewHandler(client Client, store storage.Store) http.Handler {
	router := NewRouter(client, store)
	handler := handleCORS(router)
	return handlers.ProxyHeaders(handler)
}

// StartHTTP serves the control endpoint on the loopback interface only.
func StartHTTP(client Client, store storage.Store, port int) error {
	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: NewHandler(client, store)}
	return server.ListenAndServe()
}

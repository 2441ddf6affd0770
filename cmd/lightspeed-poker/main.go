package main

import (
	"net/http"
	"os"
	"os/signal"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-poker/auth"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
	"github.com/tcriess/lightspeed-poker/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "ws service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert for websocket (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key for websocket (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	manager  *ws.Manager
	identity *auth.IdentityProvider
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister != nil {
		defer persister.Close()
	}

	identity, err = auth.NewIdentityProvider(globalConfig)
	if err != nil {
		panic(err)
	}

	manager = ws.NewManager(globalConfig, persister)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		globals.AppLogger.Info("interrupted, stopping hubs")
		manager.Stop()
		if persister != nil {
			persister.Close()
		}
		os.Exit(0)
	}()

	setupRoutes()
	// start HTTP server
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

func setupRoutes() {
	router := mux.NewRouter()
	router.HandleFunc("/poker/{room:[a-z0-9][a-z0-9_-]*}", websocketHandler).Methods(http.MethodGet)
	http.Handle("/", router)
}

// Handle incoming websockets. The room is created on first connection; all
// further interaction happens via frames submitted to the room's hub.
func websocketHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomName := vars["room"]
	if roomName == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	vals := r.URL.Query()
	id := identity.Resolve(vals.Get("id_token"), vals.Get("provider"), vals.Get("session_token"))
	hub := manager.GetOrCreateHub(roomName, vals.Get("deck"))

	// Upgrade HTTP request to Websocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close() //nolint

	// the idle sweep may stop the hub between lookup and registration, in
	// that case look the room up again, which creates a fresh hub
	doneChan := make(chan struct{})
	var client *ws.Client
	for {
		client = ws.NewClient(hub, conn, id, doneChan)
		if hub.RegisterClient(client) {
			break
		}
		hub = manager.GetOrCreateHub(roomName, vals.Get("deck"))
	}
	go client.WriteLoop()
	client.ReadLoop() // blocks until the connection goes away; unregisters itself
	<-doneChan
}
